package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

// Buffer is a Vulkan buffer with its dedicated memory allocation.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Usage  vk.BufferUsageFlags
	Label  string

	size          uint64
	propertyFlags vk.MemoryPropertyFlags
}

func (b *Buffer) Size() uint64 {
	return b.size
}

// BufferCreate allocates a buffer of size bytes backed by memory with the given
// properties. families lists the queue families that access the buffer; more
// than one distinct family switches the buffer to concurrent sharing.
func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryPropertyFlags vk.MemoryPropertyFlags, families []uint32, label string) (*Buffer, error) {
	buffer := &Buffer{
		Usage:         usage,
		Label:         label,
		size:          size,
		propertyFlags: memoryPropertyFlags,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if distinct := distinctFamilies(families); len(distinct) > 1 {
		bufferInfo.SharingMode = vk.SharingModeConcurrent
		bufferInfo.QueueFamilyIndexCount = uint32(len(distinct))
		bufferInfo.PQueueFamilyIndices = distinct
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.BufferCreate(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryPropertyFlags)
	if err != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := ResultError(fmt.Sprintf("vulkan.AllocateMemory(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := ResultError(fmt.Sprintf("vulkan.BindBufferMemory(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	return buffer, nil
}

func distinctFamilies(families []uint32) []uint32 {
	out := make([]uint32, 0, len(families))
	for _, f := range families {
		seen := false
		for _, o := range out {
			if o == f {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, f)
		}
	}
	return out
}

// LoadData copies data into a host-visible buffer at offset.
func (b *Buffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset+uint64(len(data)) > b.size {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Buffer.LoadData", "%d bytes at offset %d overflow buffer %s of %d bytes", len(data), offset, b.Label, b.size)
	}
	if b.propertyFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Buffer.LoadData", "buffer %s is not host visible", b.Label)
	}

	var pData unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &pData); res != vk.Success {
		return ResultError("vulkan.MapMemory", res)
	}
	vk.Memcopy(pData, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// Track records the buffer in the ledger: memory first so the buffer is
// destroyed before its memory is freed.
func (b *Buffer) Track(ledger *Ledger) {
	ledger.Push(LedgerMemory, b.Memory, b.Label)
	ledger.Push(LedgerBuffer, b.Handle, b.Label)
}

// Destroy releases an untracked buffer immediately.
func (b *Buffer) Destroy(context *VulkanContext) {
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
	b.size = 0
}
