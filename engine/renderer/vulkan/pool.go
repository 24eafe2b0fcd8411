package vulkan

import "sync"

type LockGroup string

const (
	PipelineManagement   LockGroup = "pipeline_management"
	DescriptorManagement LockGroup = "descriptor_management"
	MemoryManagement     LockGroup = "memory_management"
)

// VulkanLockPool hands out one mutex per lock group and one per queue family.
// Vulkan requires external synchronization on queues and on descriptor
// pools, which the transfer channels and the frame loop share.
type VulkanLockPool struct {
	mu sync.Mutex // protects the maps, never held while calling out

	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex // queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) queueLock(index uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, ok := vs.queueMutexes[index]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[index] = l
	}
	return l
}

// SafeCall runs fn while holding the mutex of group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SetQueueFamily registers a queue family up front.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.queueLock(index)
}

// SafeQueueCall runs fn while holding the mutex of a queue family.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}
