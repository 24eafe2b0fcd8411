package vulkan

import (
	"fmt"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

// ShaderLoader returns SPIR-V words for a shader source, compiling it first
// when the artifact next to it is stale.
type ShaderLoader interface {
	Load(source string) ([]uint32, error)
}

type VulkanPipelineConfig struct {
	Name     string
	CacheDir string
	Extent   vk.Extent2D
	// number of instances of owned attachments
	Instances int
	// bound at set 0
	SceneLayout    vk.DescriptorSetLayout
	DescriptorPool vk.DescriptorPool
	Shaders        ShaderLoader
}

type pipelineShader struct {
	source string
	stage  vk.ShaderStageFlagBits
	code   []uint32
}

/**
 * @brief A graphics pipeline together with everything built for it: the
 * framebuffer it renders into, its pipeline-local descriptor set layout and
 * sets, its layout and its on-disk cache. Configure it with the Add and Set
 * methods, then call BuildPipeline.
 */
type VulkanPipeline struct {
	Name string

	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	Cache          vk.PipelineCache
	Framebuffer    *VulkanFramebuffer

	/** @brief Layout of set 1 and the sets allocated from it. */
	SetLayout      vk.DescriptorSetLayout
	DescriptorSets []vk.DescriptorSet

	context       *VulkanContext
	config        VulkanPipelineConfig
	shaders       []pipelineShader
	shaderErr     error
	setBuilder    DescriptorSetLayoutBuilder
	vertexLayout  VertexLayout
	pushConstants []vk.PushConstantRange
}

func NewVulkanPipeline(context *VulkanContext, config VulkanPipelineConfig) *VulkanPipeline {
	return &VulkanPipeline{
		Name:         config.Name,
		context:      context,
		config:       config,
		Framebuffer:  NewVulkanFramebuffer(config.Extent),
		vertexLayout: EmptyVertexLayout(),
	}
}

// AddShaders loads the vertex and fragment stages. A failure is remembered
// and makes BuildPipeline refuse to run.
func (p *VulkanPipeline) AddShaders(vertexSource, fragmentSource string) error {
	p.shaders = []pipelineShader{
		{source: vertexSource, stage: vk.ShaderStageVertexBit},
		{source: fragmentSource, stage: vk.ShaderStageFragmentBit},
	}
	p.shaderErr = p.loadShaders()
	return p.shaderErr
}

func (p *VulkanPipeline) loadShaders() error {
	for i := range p.shaders {
		code, err := p.config.Shaders.Load(p.shaders[i].source)
		if err != nil {
			if core.KindOf(err) != core.ErrorKindShaderCompileFailed {
				err = core.NewError(core.ErrorKindShaderCompileFailed, "vulkan.VulkanPipeline.AddShaders", err)
			}
			core.LogError("pipeline %s: %s", p.Name, err.Error())
			return err
		}
		p.shaders[i].code = code
	}
	return nil
}

// UsesShader reports whether source is one of the pipeline's stages.
func (p *VulkanPipeline) UsesShader(source string) bool {
	target, err := filepath.Abs(source)
	if err != nil {
		return false
	}
	for _, s := range p.shaders {
		if abs, err := filepath.Abs(s.source); err == nil && abs == target {
			return true
		}
	}
	return false
}

func (p *VulkanPipeline) AddFramebufferAttachment(usage vk.ImageUsageFlags, format vk.Format) error {
	return p.Framebuffer.AddOwnedAttachment(p.context, usage, format, p.config.Instances)
}

func (p *VulkanPipeline) AddExternalFramebufferAttachment(views []vk.ImageView, format vk.Format) error {
	return p.Framebuffer.AddExternalAttachment(views, format)
}

// AddPipelineDescriptorBinding appends a binding to the pipeline-local set
// layout and returns its index.
func (p *VulkanPipeline) AddPipelineDescriptorBinding(descriptorType vk.DescriptorType, stages vk.ShaderStageFlags) uint32 {
	return p.setBuilder.AddBinding(descriptorType, stages)
}

// CreatePipelineSetLayout creates the pipeline-local layout and allocates
// sets from it. Pipelines whose sets are owned elsewhere pass 0.
func (p *VulkanPipeline) CreatePipelineSetLayout(sets int) error {
	layout, err := p.setBuilder.Build(p.context, p.Name+" set layout")
	if err != nil {
		return err
	}
	p.SetLayout = layout
	if sets == 0 {
		return nil
	}
	p.DescriptorSets, err = AllocateDescriptorSets(p.context, p.config.DescriptorPool, layout, sets)
	return err
}

func (p *VulkanPipeline) SetVertexLayout(layout VertexLayout) {
	p.vertexLayout = layout
}

func (p *VulkanPipeline) AddPushConstant(stages vk.ShaderStageFlags, size uint32) {
	var offset uint32
	for _, r := range p.pushConstants {
		offset = r.Offset + r.Size
	}
	p.pushConstants = append(p.pushConstants, vk.PushConstantRange{
		StageFlags: stages,
		Offset:     offset,
		Size:       size,
	})
}

// BuildPipeline creates the render pass and framebuffers, the pipeline layout,
// the pipeline cache and finally the pipeline itself.
func (p *VulkanPipeline) BuildPipeline() error {
	if p.shaderErr != nil {
		return core.NewError(core.ErrorKindPipelineCreationFailed, "vulkan.VulkanPipeline.BuildPipeline",
			fmt.Errorf("%s: shaders failed to load: %w", p.Name, p.shaderErr))
	}
	if len(p.shaders) == 0 {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.VulkanPipeline.BuildPipeline", "%s has no shaders", p.Name)
	}

	if err := p.Framebuffer.CreateRenderPass(p.context, p.Name+" render pass"); err != nil {
		return err
	}
	if err := p.Framebuffer.Create(p.context, p.Name+" framebuffer"); err != nil {
		return err
	}

	setLayouts := []vk.DescriptorSetLayout{p.config.SceneLayout}
	if p.SetLayout != nil {
		setLayouts = append(setLayouts, p.SetLayout)
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(p.pushConstants)),
		PPushConstantRanges:    p.pushConstants,
	}

	if err := p.context.Locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		result := vk.CreatePipelineLayout(p.context.Device.LogicalDevice, &pipelineLayoutCreateInfo, p.context.Allocator, &layout)
		if !VulkanResultIsSuccess(result) {
			return ResultError("vulkan.CreatePipelineLayout", result)
		}
		p.PipelineLayout = layout
		return nil
	}); err != nil {
		core.LogError(err.Error())
		return core.NewError(core.ErrorKindPipelineCreationFailed, "vulkan.VulkanPipeline.BuildPipeline", err)
	}
	p.context.Ledger.Push(LedgerPipelineLayout, p.PipelineLayout, p.Name+" layout")

	cache, err := NewPipelineCache(p.context, p.config.CacheDir, p.Name)
	if err != nil {
		return err
	}
	p.Cache = cache

	handle, err := p.createPipeline()
	if err != nil {
		return err
	}
	p.Handle = handle
	p.context.Ledger.Push(LedgerPipeline, handle, p.Name)

	core.LogDebug("Graphics pipeline %s created.", p.Name)
	return nil
}

// createPipeline builds the pipeline object from the current shader code.
// The shader modules are destroyed before it returns.
func (p *VulkanPipeline) createPipeline() (vk.Pipeline, error) {
	stages := make([]*VulkanShaderStage, 0, len(p.shaders))
	defer func() {
		for _, s := range stages {
			s.Destroy(p.context)
		}
	}()
	stageInfos := make([]vk.PipelineShaderStageCreateInfo, 0, len(p.shaders))
	for _, s := range p.shaders {
		stage, err := NewShaderStage(p.context, s.source, s.stage, s.code)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
		stageInfos = append(stageInfos, stage.CreateInfo())
	}

	extent := p.Framebuffer.Extent
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		}},
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if p.Framebuffer.HasDepth() {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
		depthStencil.DepthBoundsTestEnable = vk.False
		depthStencil.MinDepthBounds = 0.0
		depthStencil.MaxDepthBounds = 1.0
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, p.Framebuffer.ColorAttachmentCount())
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
				vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	vertexInputInfo := p.vertexLayout.CreateInfo()

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stageInfos)),
		PStages:             stageInfos,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		Layout:              p.PipelineLayout,
		RenderPass:          p.Framebuffer.RenderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := p.context.Locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(p.context.Device.LogicalDevice, p.Cache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, p.context.Allocator, pPipelines)
		if !VulkanResultIsSuccess(result) {
			return ResultError("vulkan.CreateGraphicsPipelines", result)
		}
		return nil
	}); err != nil {
		core.LogError("pipeline %s: %s", p.Name, err.Error())
		return nil, core.NewError(core.ErrorKindPipelineCreationFailed, "vulkan.VulkanPipeline.BuildPipeline", err)
	}
	if pPipelines[0] == nil {
		return nil, core.Errorf(core.ErrorKindPipelineCreationFailed, "vulkan.VulkanPipeline.BuildPipeline", "%s: driver returned no pipeline", p.Name)
	}
	return pPipelines[0], nil
}

// Rebuild reloads the shaders and replaces the pipeline object. The device is
// idled first so no in-flight frame still uses the old one. If anything fails
// the old pipeline stays in place.
func (p *VulkanPipeline) Rebuild() error {
	if p.Handle == nil {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.VulkanPipeline.Rebuild", "%s was never built", p.Name)
	}
	if err := p.loadShaders(); err != nil {
		return err
	}
	if res := vk.DeviceWaitIdle(p.context.Device.LogicalDevice); res != vk.Success {
		return ResultError("vulkan.DeviceWaitIdle", res)
	}

	handle, err := p.createPipeline()
	if err != nil {
		return err
	}

	old := p.Handle
	p.context.Ledger.Forget(old)
	vk.DestroyPipeline(p.context.Device.LogicalDevice, old, p.context.Allocator)
	p.Handle = handle
	p.context.Ledger.Push(LedgerPipeline, handle, p.Name)
	core.LogInfo("Pipeline %s rebuilt.", p.Name)
	return nil
}

// WritePipelineCacheFile persists the driver cache blob. With destroy set the
// cache is released and removed from the ledger.
func (p *VulkanPipeline) WritePipelineCacheFile(destroy bool) error {
	if p.Cache == nil {
		return nil
	}
	data, err := PipelineCacheData(p.context, p.Cache)
	if err == nil {
		err = WritePipelineCacheBlob(p.config.CacheDir, p.Name, data)
	}
	if err != nil {
		core.LogWarn("pipeline %s: %s", p.Name, err.Error())
	}

	if destroy {
		p.context.Ledger.Forget(p.Cache)
		vk.DestroyPipelineCache(p.context.Device.LogicalDevice, p.Cache, p.context.Allocator)
		p.Cache = nil
	}
	return err
}

func (p *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

// BindDescriptorSets binds sets starting at firstSet.
func (p *VulkanPipeline) BindDescriptorSets(commandBuffer *VulkanCommandBuffer, firstSet uint32, sets ...vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics, p.PipelineLayout, firstSet, uint32(len(sets)), sets, 0, nil)
}
