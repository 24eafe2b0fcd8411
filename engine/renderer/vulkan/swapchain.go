package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	umath "github.com/spaghettifunk/umbra/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// chooseSurfaceFormat prefers BGRA8 UNORM with the sRGB non-linear colour
// space and falls back to the first format offered.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface extent when the platform fixes it and clamps
// the requested one otherwise.
func chooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	return vk.Extent2D{
		Width:  umath.Clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: umath.Clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func chooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// SwapchainCreate builds the swapchain and one view per image. The views are
// recorded in the ledger after the swapchain so they are destroyed first.
func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	support := context.Device.SwapchainSupport
	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		Extent:      chooseExtent(support.Capabilities, width, height),
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(support.PresentModes),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			context.Device.GraphicsQueueIndex,
			context.Device.PresentQueueIndex,
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		err := ResultError("vulkan.SwapchainCreate", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = swapchainHandle
	context.Ledger.Push(LedgerSwapchain, swapchainHandle, "swapchain")

	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		return nil, ResultError("vulkan.GetSwapchainImages", res)
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		return nil, ResultError("vulkan.GetSwapchainImages", res)
	}

	for i := range swapchain.Images {
		view, err := createImageView(context, swapchain.Images[i], swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view
		context.Ledger.Push(LedgerImageView, view, fmt.Sprintf("swapchain view %d", i))
	}

	core.LogInfo("Swapchain created with %d images of %dx%d.", swapchain.ImageCount, swapchain.Extent.Width, swapchain.Extent.Height)
	return swapchain, nil
}

// AcquireNextImage returns the index of the next presentable image. A
// suboptimal swapchain still hands out an image and is not treated as an error.
func (vs *VulkanSwapchain) AcquireNextImage(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, vk.NullFence, &imageIndex)
	if err := ResultError("vulkan.AcquireNextImage", res); err != nil {
		return 0, err
	}
	return imageIndex, nil
}

// Present queues presentation of imageIndex once renderCompleteSemaphore
// signals.
func (vs *VulkanSwapchain) Present(context *VulkanContext, renderCompleteSemaphore vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
		PResults:           nil,
	}

	return context.Locks.SafeQueueCall(context.Device.PresentQueueIndex, func() error {
		return ResultError("vulkan.QueuePresent", vk.QueuePresent(context.Device.PresentQueue, &presentInfo))
	})
}
