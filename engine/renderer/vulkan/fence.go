package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

// NewFence creates a fence and records it in the ledger.
func NewFence(context *VulkanContext, createSignaled bool, label string) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := ResultError("vulkan.NewFence", res)
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	context.Ledger.Push(LedgerFence, pFence, label)
	return fence, nil
}

// Wait blocks until the fence is signaled or timeoutNs expires. A fence known
// to be signaled returns immediately.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	res := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	if res != vk.Success {
		err := ResultError("vulkan.VulkanFence.Wait", res)
		if res == vk.Timeout {
			core.LogWarn(err.Error())
		} else {
			core.LogError(err.Error())
		}
		return err
	}
	vf.IsSignaled = true
	return nil
}

// Reset puts the fence back in the unsignaled state before a submission.
func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		err := ResultError("vulkan.VulkanFence.Reset", res)
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}
