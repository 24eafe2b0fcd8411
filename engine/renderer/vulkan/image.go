package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Aspect vk.ImageAspectFlags
	Width  uint32
	Height uint32
	Label  string
}

// ImageCreate creates a 2D image with optimal tiling, binds device memory with
// the given properties and, when createView is set, a view covering it.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, memoryFlags vk.MemoryPropertyFlags, aspect vk.ImageAspectFlags, createView bool, label string) (*VulkanImage, error) {
	image := &VulkanImage{
		Format: format,
		Aspect: aspect,
		Width:  width,
		Height: height,
		Label:  label,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.ImageCreate(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	image.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		image.Destroy(context)
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
		image.Destroy(context)
		err := ResultError(fmt.Sprintf("vulkan.AllocateMemory(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	image.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		image.Destroy(context)
		err := ResultError(fmt.Sprintf("vulkan.BindImageMemory(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}

	if createView {
		view, err := createImageView(context, handle, format, aspect)
		if err != nil {
			image.Destroy(context)
			return nil, err
		}
		image.View = view
	}
	return image, nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := ResultError("vulkan.CreateImageView", res)
		core.LogError(err.Error())
		return nil, err
	}
	return view, nil
}

// Track records the image in the ledger. The push order is memory, image, view
// so the view goes first at flush time.
func (vi *VulkanImage) Track(ledger *Ledger) {
	ledger.Push(LedgerMemory, vi.Memory, vi.Label)
	ledger.Push(LedgerImage, vi.Handle, vi.Label)
	if vi.View != nil {
		ledger.Push(LedgerImageView, vi.View, vi.Label)
	}
}

// Destroy releases an untracked image immediately.
func (vi *VulkanImage) Destroy(context *VulkanContext) {
	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
}

type layoutTransition struct {
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
	srcStage  vk.PipelineStageFlags
	dstStage  vk.PipelineStageFlags
}

// transitionFor returns the access masks and stages for the layout changes a
// texture upload goes through.
func transitionFor(oldLayout, newLayout vk.ImageLayout) (layoutTransition, error) {
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return layoutTransition{
			srcAccess: 0,
			dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return layoutTransition{
			srcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			dstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, nil
	}
	return layoutTransition{}, core.Errorf(core.ErrorKindInvalidState, "vulkan.transitionFor", "unsupported layout transition %d -> %d", oldLayout, newLayout)
}

// TransitionLayout records a barrier moving the whole image between layouts.
func (vi *VulkanImage) TransitionLayout(commandBuffer *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	transition, err := transitionFor(oldLayout, newLayout)
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: transition.srcAccess,
		DstAccessMask: transition.dstAccess,
	}

	vk.CmdPipelineBarrier(commandBuffer.Handle, transition.srcStage, transition.dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// CopyFromBuffer records a copy of a tightly packed staging buffer into the
// image, which must be in TRANSFER_DST_OPTIMAL.
func (vi *VulkanImage) CopyFromBuffer(commandBuffer *VulkanCommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: vi.Width, Height: vi.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(commandBuffer.Handle, buffer, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// SamplerCreate creates a linear, repeating sampler and records it in the
// ledger.
func SamplerCreate(context *VulkanContext, label string) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		err := ResultError("vulkan.SamplerCreate", res)
		core.LogError(err.Error())
		return nil, err
	}
	context.Ledger.Push(LedgerSampler, sampler, label)
	return sampler, nil
}
