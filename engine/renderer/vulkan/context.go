package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	// only set when validation is enabled
	debugMessenger vk.DebugReportCallback

	Device    *VulkanDevice
	Swapchain *VulkanSwapchain

	// Fixed render extent. The window is not resizable.
	Extent vk.Extent2D

	Locks  *VulkanLockPool
	Ledger *Ledger
}

func NewVulkanContext(width, height uint32) *VulkanContext {
	vc := &VulkanContext{
		Allocator: nil,
		Device:    &VulkanDevice{},
		Extent:    vk.Extent2D{Width: width, Height: height},
		Locks:     NewVulkanLockPool(),
	}
	vc.Ledger = NewLedger(vc)
	return vc
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vc.Device.Memory

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		// Check each memory type to see if its bit is set to 1.
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}

	return 0, core.Errorf(core.ErrorKindOutOfMemory, "vulkan.FindMemoryIndex", "no memory type for filter 0x%x with properties 0x%x", typeFilter, uint32(propertyFlags))
}
