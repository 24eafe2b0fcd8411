package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

// LedgerKind tags a handle with the destroy function it needs.
type LedgerKind uint8

const (
	LedgerBuffer LedgerKind = iota
	LedgerMemory
	LedgerImage
	LedgerImageView
	LedgerSampler
	LedgerFence
	LedgerSemaphore
	LedgerCommandPool
	LedgerDescriptorPool
	LedgerDescriptorSetLayout
	LedgerPipeline
	LedgerPipelineLayout
	LedgerPipelineCache
	LedgerRenderPass
	LedgerFramebuffer
	LedgerShaderModule
	LedgerSwapchain
)

var ledgerKindNames = [...]string{
	LedgerBuffer:              "buffer",
	LedgerMemory:              "memory",
	LedgerImage:               "image",
	LedgerImageView:           "image view",
	LedgerSampler:             "sampler",
	LedgerFence:               "fence",
	LedgerSemaphore:           "semaphore",
	LedgerCommandPool:         "command pool",
	LedgerDescriptorPool:      "descriptor pool",
	LedgerDescriptorSetLayout: "descriptor set layout",
	LedgerPipeline:            "pipeline",
	LedgerPipelineLayout:      "pipeline layout",
	LedgerPipelineCache:       "pipeline cache",
	LedgerRenderPass:          "render pass",
	LedgerFramebuffer:         "framebuffer",
	LedgerShaderModule:        "shader module",
	LedgerSwapchain:           "swapchain",
}

func (k LedgerKind) String() string {
	if int(k) < len(ledgerKindNames) {
		return ledgerKindNames[k]
	}
	return fmt.Sprintf("ledger kind %d", uint8(k))
}

type LedgerEntry struct {
	Kind   LedgerKind
	Handle interface{}
	Label  string
}

// Destroyer releases a single handle of the given kind.
type Destroyer interface {
	DestroyHandle(kind LedgerKind, handle interface{})
}

/**
 * @brief Records every long-lived GPU object in creation order so they can be
 * released in reverse order at shutdown. Flushing twice is harmless: the
 * second flush finds the ledger empty.
 */
type Ledger struct {
	mu        sync.Mutex
	entries   []LedgerEntry
	destroyer Destroyer
}

func NewLedger(destroyer Destroyer) *Ledger {
	return &Ledger{destroyer: destroyer}
}

func (l *Ledger) Push(kind LedgerKind, handle interface{}, label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LedgerEntry{Kind: kind, Handle: handle, Label: label})
}

// Forget drops the most recent entry holding handle without destroying it.
// It is used when the owner releases the object itself before shutdown.
func (l *Ledger) Forget(handle interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Handle == handle {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Flush destroys every recorded handle, newest first, and empties the ledger.
func (l *Ledger) Flush() {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	l.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	core.LogDebug("flushing %d GPU objects", len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		l.destroyer.DestroyHandle(e.Kind, e.Handle)
	}
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the recorded entries in creation order.
func (l *Ledger) Entries() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// DestroyHandle implements Destroyer on the logical device of the context.
func (vc *VulkanContext) DestroyHandle(kind LedgerKind, handle interface{}) {
	dev := vc.Device.LogicalDevice
	alloc := vc.Allocator

	switch kind {
	case LedgerBuffer:
		vk.DestroyBuffer(dev, handle.(vk.Buffer), alloc)
	case LedgerMemory:
		vk.FreeMemory(dev, handle.(vk.DeviceMemory), alloc)
	case LedgerImage:
		vk.DestroyImage(dev, handle.(vk.Image), alloc)
	case LedgerImageView:
		vk.DestroyImageView(dev, handle.(vk.ImageView), alloc)
	case LedgerSampler:
		vk.DestroySampler(dev, handle.(vk.Sampler), alloc)
	case LedgerFence:
		vk.DestroyFence(dev, handle.(vk.Fence), alloc)
	case LedgerSemaphore:
		vk.DestroySemaphore(dev, handle.(vk.Semaphore), alloc)
	case LedgerCommandPool:
		vk.DestroyCommandPool(dev, handle.(vk.CommandPool), alloc)
	case LedgerDescriptorPool:
		vk.DestroyDescriptorPool(dev, handle.(vk.DescriptorPool), alloc)
	case LedgerDescriptorSetLayout:
		vk.DestroyDescriptorSetLayout(dev, handle.(vk.DescriptorSetLayout), alloc)
	case LedgerPipeline:
		vk.DestroyPipeline(dev, handle.(vk.Pipeline), alloc)
	case LedgerPipelineLayout:
		vk.DestroyPipelineLayout(dev, handle.(vk.PipelineLayout), alloc)
	case LedgerPipelineCache:
		vk.DestroyPipelineCache(dev, handle.(vk.PipelineCache), alloc)
	case LedgerRenderPass:
		vk.DestroyRenderPass(dev, handle.(vk.RenderPass), alloc)
	case LedgerFramebuffer:
		vk.DestroyFramebuffer(dev, handle.(vk.Framebuffer), alloc)
	case LedgerShaderModule:
		vk.DestroyShaderModule(dev, handle.(vk.ShaderModule), alloc)
	case LedgerSwapchain:
		vk.DestroySwapchain(dev, handle.(vk.Swapchain), alloc)
	default:
		core.LogError("ledger: cannot destroy handle of %s", kind)
	}
}
