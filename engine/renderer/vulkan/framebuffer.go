package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/umbra/engine/core"
)

// Attachment is one attachment point of a framebuffer with a view per
// instance. External attachments reference views owned by someone else
// (the swapchain) and are presented rather than sampled.
type Attachment struct {
	Images   []*VulkanImage
	Views    []vk.ImageView
	Format   vk.Format
	Depth    bool
	External bool
	Label    string
}

func (a *Attachment) finalLayout() vk.ImageLayout {
	switch {
	case a.Depth:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case a.External:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutShaderReadOnlyOptimal
	}
}

/**
 * @brief An ordered set of attachments, the render pass derived from them and
 * one native framebuffer per instance. Every attachment has the same number of
 * instances and a depth attachment, if any, is the last one.
 */
type VulkanFramebuffer struct {
	Extent      vk.Extent2D
	Attachments []*Attachment
	RenderPass  vk.RenderPass
	Handles     []vk.Framebuffer
	instances   int
}

func NewVulkanFramebuffer(extent vk.Extent2D) *VulkanFramebuffer {
	return &VulkanFramebuffer{Extent: extent}
}

func (fb *VulkanFramebuffer) Instances() int {
	return fb.instances
}

func (fb *VulkanFramebuffer) HasDepth() bool {
	n := len(fb.Attachments)
	return n > 0 && fb.Attachments[n-1].Depth
}

func (fb *VulkanFramebuffer) addAttachment(a *Attachment) error {
	if fb.RenderPass != nil {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.addAttachment", "render pass already created, cannot add %s", a.Label)
	}
	if fb.HasDepth() {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.addAttachment", "%s added after the depth attachment", a.Label)
	}
	if len(a.Views) == 0 {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.addAttachment", "%s has no views", a.Label)
	}
	if len(fb.Attachments) > 0 && len(a.Views) != fb.instances {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.addAttachment", "%s has %d instances, framebuffer has %d", a.Label, len(a.Views), fb.instances)
	}
	fb.instances = len(a.Views)
	fb.Attachments = append(fb.Attachments, a)
	return nil
}

// AddOwnedAttachment allocates instances images for a new attachment. Usage
// containing DEPTH_STENCIL_ATTACHMENT makes it the depth attachment; colour
// attachments are also sampled by later passes.
func (fb *VulkanFramebuffer) AddOwnedAttachment(context *VulkanContext, usage vk.ImageUsageFlags, format vk.Format, instances int) error {
	depth := usage&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) != 0
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if depth {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	} else {
		usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}

	attachment := &Attachment{
		Format: format,
		Depth:  depth,
		Label:  fmt.Sprintf("attachment %d (%s)", len(fb.Attachments), uuid.NewString()),
	}
	if fb.HasDepth() {
		return fb.addAttachment(attachment)
	}
	for i := 0; i < instances; i++ {
		image, err := ImageCreate(context, fb.Extent.Width, fb.Extent.Height, format, usage,
			vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), aspect, true,
			fmt.Sprintf("%s #%d", attachment.Label, i))
		if err != nil {
			return err
		}
		image.Track(context.Ledger)
		attachment.Images = append(attachment.Images, image)
		attachment.Views = append(attachment.Views, image.View)
	}
	return fb.addAttachment(attachment)
}

// AddExternalAttachment binds views owned elsewhere, one per instance.
func (fb *VulkanFramebuffer) AddExternalAttachment(views []vk.ImageView, format vk.Format) error {
	return fb.addAttachment(&Attachment{
		Views:    append([]vk.ImageView(nil), views...),
		Format:   format,
		External: true,
		Label:    fmt.Sprintf("external attachment %d", len(fb.Attachments)),
	})
}

func (fb *VulkanFramebuffer) AttachmentDescriptions() []vk.AttachmentDescription {
	descriptions := make([]vk.AttachmentDescription, len(fb.Attachments))
	for i, a := range fb.Attachments {
		storeOp := vk.AttachmentStoreOpStore
		if a.Depth {
			storeOp = vk.AttachmentStoreOpDontCare
		}
		descriptions[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        storeOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    a.finalLayout(),
		}
	}
	return descriptions
}

func (fb *VulkanFramebuffer) ColorReferences() []vk.AttachmentReference {
	refs := make([]vk.AttachmentReference, 0, len(fb.Attachments))
	for i, a := range fb.Attachments {
		if a.Depth {
			continue
		}
		refs = append(refs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	return refs
}

// DepthReference returns nil when the framebuffer has no depth attachment.
func (fb *VulkanFramebuffer) DepthReference() *vk.AttachmentReference {
	if !fb.HasDepth() {
		return nil
	}
	return &vk.AttachmentReference{
		Attachment: uint32(len(fb.Attachments) - 1),
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
}

func (fb *VulkanFramebuffer) ColorAttachmentCount() int {
	if fb.HasDepth() {
		return len(fb.Attachments) - 1
	}
	return len(fb.Attachments)
}

// ClearValues clears colour to opaque black and depth to 1.
func (fb *VulkanFramebuffer) ClearValues() []vk.ClearValue {
	clearValues := make([]vk.ClearValue, len(fb.Attachments))
	for i, a := range fb.Attachments {
		if a.Depth {
			clearValues[i].SetDepthStencil(1.0, 0)
		} else {
			clearValues[i].SetColor([]float32{0, 0, 0, 1})
		}
	}
	return clearValues
}

func (fb *VulkanFramebuffer) subpassDependencies() []vk.SubpassDependency {
	colorStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	colorAccess := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if fb.HasDepth() {
		colorStages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		colorAccess |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	return []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      0,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DstStageMask:    colorStages,
			DstAccessMask:   colorAccess,
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    colorStages,
			SrcAccessMask:   colorAccess,
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}
}

// CreateRenderPass derives a single-subpass render pass from the attachments.
func (fb *VulkanFramebuffer) CreateRenderPass(context *VulkanContext, label string) error {
	if len(fb.Attachments) == 0 {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.CreateRenderPass", "%s has no attachments", label)
	}
	colorRefs := fb.ColorReferences()
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: fb.DepthReference(),
	}

	descriptions := fb.AttachmentDescriptions()
	dependencies := fb.subpassDependencies()
	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		PAttachments:    descriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &renderPass); res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.CreateRenderPass(%s)", label), res)
		core.LogError(err.Error())
		return err
	}
	fb.RenderPass = renderPass
	context.Ledger.Push(LedgerRenderPass, renderPass, label)
	return nil
}

// Create builds one native framebuffer per instance. The render pass must
// exist.
func (fb *VulkanFramebuffer) Create(context *VulkanContext, label string) error {
	if fb.RenderPass == nil {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.Framebuffer.Create", "%s has no render pass", label)
	}
	fb.Handles = make([]vk.Framebuffer, fb.instances)
	for i := 0; i < fb.instances; i++ {
		views := make([]vk.ImageView, len(fb.Attachments))
		for j, a := range fb.Attachments {
			views[j] = a.Views[i]
		}
		framebufferCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      fb.RenderPass,
			AttachmentCount: uint32(len(views)),
			PAttachments:    views,
			Width:           fb.Extent.Width,
			Height:          fb.Extent.Height,
			Layers:          1,
		}

		var handle vk.Framebuffer
		if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &handle); res != vk.Success {
			err := ResultError(fmt.Sprintf("vulkan.CreateFramebuffer(%s #%d)", label, i), res)
			core.LogError(err.Error())
			return err
		}
		fb.Handles[i] = handle
		context.Ledger.Push(LedgerFramebuffer, handle, fmt.Sprintf("%s #%d", label, i))
	}
	return nil
}

// Begin starts the render pass on instance with the framebuffer's clears.
func (fb *VulkanFramebuffer) Begin(commandBuffer *VulkanCommandBuffer, instance int) {
	clearValues := fb.ClearValues()
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  fb.RenderPass,
		Framebuffer: fb.Handles[instance],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: fb.Extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (fb *VulkanFramebuffer) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
