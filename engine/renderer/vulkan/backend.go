package vulkan

import (
	"fmt"
	"path/filepath"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/assets"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

const (
	geometryPipelineName = "geometry"
	lightingPipelineName = "lighting"
)

// G-buffer layout written by the geometry pass and sampled by the lighting
// pass at set 1, in this order.
var gbufferFormats = []vk.Format{
	vk.FormatR16g16b16a16Sfloat, // position
	vk.FormatR16g16b16a16Sfloat, // normal
	vk.FormatR8g8b8a8Unorm,      // albedo
}

// SurfaceProvider is the window the renderer presents to.
type SurfaceProvider interface {
	InstanceProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type VulkanRenderer struct {
	surface SurfaceProvider
	config  core.RendererConfig
	context *VulkanContext

	shaders *assets.ShaderCompiler
	watcher *assets.ShaderWatcher

	// buffers go through the transfer queue, images through graphics
	transfer         *TransferChannel
	graphicsTransfer *TransferChannel

	descriptorPool vk.DescriptorPool
	sceneLayout    vk.DescriptorSetLayout
	sampler        vk.Sampler

	geometry  *VulkanPipeline
	lighting  *VulkanPipeline
	scheduler *FrameScheduler
	lights    *lighting.Manager
	resources *ResourceStore
}

func New(surface SurfaceProvider, config core.RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		surface: surface,
		config:  config,
		shaders: assets.NewShaderCompiler(),
		resources: &ResourceStore{
			Textures: NewTextureCache(),
		},
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	vr.context = NewVulkanContext(appWidth, appHeight)

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.surface.CreateSurface(vr.context.Instance)
	if err != nil {
		err = core.NewError(core.ErrorKindSurfaceLost, "vulkan.Initialize", err)
		core.LogError(err.Error())
		return err
	}
	vr.context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		return err
	}

	sc, err := SwapchainCreate(vr.context, appWidth, appHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.Extent = sc.Extent

	device := vr.context.Device
	vr.transfer, err = NewTransferChannel(vr.context, device.TransferQueueIndex, device.TransferQueue,
		vr.config.UploadTimeout, device.QueueFamilies(), "transfer")
	if err != nil {
		return err
	}
	vr.graphicsTransfer, err = NewTransferChannel(vr.context, device.GraphicsQueueIndex, device.GraphicsQueue,
		vr.config.UploadTimeout, device.QueueFamilies(), "graphics transfer")
	if err != nil {
		return err
	}

	poolSizes, maxSets := globalPoolSizes()
	if vr.descriptorPool, err = NewDescriptorPool(vr.context, maxSets, poolSizes, "global descriptor pool"); err != nil {
		return err
	}
	if err := vr.createSceneLayout(); err != nil {
		return err
	}
	if vr.sampler, err = SamplerCreate(vr.context, "default sampler"); err != nil {
		return err
	}

	var slots [FrameOverlap]*FrameSlot
	sceneSets, err := AllocateDescriptorSets(vr.context, vr.descriptorPool, vr.sceneLayout, FrameOverlap)
	if err != nil {
		return err
	}
	for i := range slots {
		if slots[i], err = NewFrameSlot(vr.context, i); err != nil {
			return err
		}
		slots[i].BindSceneSet(vr.context, sceneSets[i])
	}
	vr.lights = lighting.NewManager(NewLightingBackend(vr.context, vr.transfer, sceneSets), FrameOverlap)

	if err := vr.resources.Textures.SetPlaceholder(vr.context, vr.graphicsTransfer, assets.PlaceholderTexture()); err != nil {
		return err
	}

	if err := vr.createGeometryPipeline(); err != nil {
		return err
	}
	if err := vr.createLightingPipeline(); err != nil {
		return err
	}

	vr.scheduler = NewFrameScheduler(vr.context, slots, FrameSchedulerConfig{
		FenceTimeout:   vr.config.FenceTimeout,
		AcquireTimeout: vr.config.AcquireTimeout,
		Geometry:       &GeometryPass{Pipeline: vr.geometry, Resources: vr.resources},
		Lighting:       &LightingPass{Pipeline: vr.lighting},
		Lights:         vr.lights,
	})

	if vr.config.WatchShaders {
		watcher, err := assets.NewShaderWatcher(vr.shaders)
		if err == nil {
			err = watcher.Initialize(vr.config.ShaderDir)
		}
		if err != nil {
			core.LogWarn("shader watcher disabled: %s", err.Error())
		} else {
			vr.watcher = watcher
		}
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	procAddr := vr.surface.InstanceProcAddress()
	if procAddr == nil {
		err := core.Errorf(core.ErrorKindResourceCreation, "vulkan.createInstance", "GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Umbra Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.surface.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vr.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(layers); err != nil {
			core.LogError(err.Error())
			return err
		}
	}

	core.LogDebug("Required extensions: %v", requiredExtensions)
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		err := ResultError("vulkan.CreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	vr.context.Instance = instance
	core.LogInfo("Vulkan Instance created.")

	if vr.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, vr.context.Allocator, &dbg); res != vk.Success {
			err := ResultError("vulkan.CreateDebugReportCallback", res)
			core.LogError(err.Error())
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return ResultError("vulkan.EnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return ResultError("vulkan.EnumerateInstanceLayerProperties", res)
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if fixedString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return core.Errorf(core.ErrorKindResourceCreation, "vulkan.checkValidationLayers", "required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

// sceneSetBindings is set 0, shared by both pipelines: the camera and the
// light arrays.
func sceneSetBindings() *DescriptorSetLayoutBuilder {
	builder := &DescriptorSetLayoutBuilder{}
	builder.AddBinding(vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit))
	for b := lighting.BindingPointPosition; b <= lighting.BindingLightingInfo; b++ {
		builder.AddBinding(vk.DescriptorTypeStorageBuffer, vk.ShaderStageFlags(vk.ShaderStageFragmentBit))
	}
	return builder
}

// gbufferSetBindings is set 1 of the lighting pipeline, one sampler per
// G-buffer attachment.
func gbufferSetBindings() *DescriptorSetLayoutBuilder {
	builder := &DescriptorSetLayoutBuilder{}
	for range gbufferFormats {
		builder.AddBinding(vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit))
	}
	return builder
}

// globalPoolSizes covers every set allocated from the global pool: a scene
// set and a G-buffer set per frame slot. Material sets have their own pools.
func globalPoolSizes() ([]vk.DescriptorPoolSize, uint32) {
	return PoolSizesFor(
		SetDemand{Bindings: sceneSetBindings().Bindings(), Sets: FrameOverlap},
		SetDemand{Bindings: gbufferSetBindings().Bindings(), Sets: FrameOverlap},
	)
}

func (vr *VulkanRenderer) createSceneLayout() error {
	layout, err := sceneSetBindings().Build(vr.context, "scene set layout")
	if err != nil {
		return err
	}
	vr.sceneLayout = layout
	return nil
}

func (vr *VulkanRenderer) pipelineConfig(name string, instances int) VulkanPipelineConfig {
	return VulkanPipelineConfig{
		Name:           name,
		CacheDir:       vr.config.PipelineCacheDir,
		Extent:         vr.context.Extent,
		Instances:      instances,
		SceneLayout:    vr.sceneLayout,
		DescriptorPool: vr.descriptorPool,
		Shaders:        vr.shaders,
	}
}

func (vr *VulkanRenderer) shaderPath(name string) string {
	return filepath.Join(vr.config.ShaderDir, name)
}

func (vr *VulkanRenderer) createGeometryPipeline() error {
	p := NewVulkanPipeline(vr.context, vr.pipelineConfig(geometryPipelineName, FrameOverlap))
	if err := p.AddShaders(vr.shaderPath("deferred.vert"), vr.shaderPath("deferred.frag")); err != nil {
		return err
	}

	colorUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	for _, format := range gbufferFormats {
		if err := p.AddFramebufferAttachment(colorUsage, format); err != nil {
			return err
		}
	}
	if err := p.AddFramebufferAttachment(vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), vr.context.Device.DepthFormat); err != nil {
		return err
	}

	// the diffuse texture; sets are allocated per material group
	p.AddPipelineDescriptorBinding(vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit))
	if err := p.CreatePipelineSetLayout(0); err != nil {
		return err
	}
	p.SetVertexLayout(ModelVertexLayout())
	p.AddPushConstant(vk.ShaderStageFlags(vk.ShaderStageVertexBit), pushConstantsSize)

	if err := p.BuildPipeline(); err != nil {
		return err
	}
	vr.geometry = p
	return nil
}

func (vr *VulkanRenderer) createLightingPipeline() error {
	swapchain := vr.context.Swapchain
	p := NewVulkanPipeline(vr.context, vr.pipelineConfig(lightingPipelineName, int(swapchain.ImageCount)))
	if err := p.AddShaders(vr.shaderPath("lighting.vert"), vr.shaderPath("lighting.frag")); err != nil {
		return err
	}
	if err := p.AddExternalFramebufferAttachment(swapchain.Views, swapchain.ImageFormat.Format); err != nil {
		return err
	}

	for _, binding := range gbufferSetBindings().Bindings() {
		p.AddPipelineDescriptorBinding(binding.DescriptorType, binding.StageFlags)
	}
	if err := p.CreatePipelineSetLayout(FrameOverlap); err != nil {
		return err
	}

	gbuffer := vr.geometry.Framebuffer.Attachments
	var writes []vk.WriteDescriptorSet
	for slot, set := range p.DescriptorSets {
		for binding := range gbufferFormats {
			writes = append(writes, ImageWrite(set, uint32(binding), vr.sampler, gbuffer[binding].Views[slot]))
		}
	}
	UpdateDescriptorSets(vr.context, writes)

	if err := p.BuildPipeline(); err != nil {
		return err
	}
	vr.lighting = p
	return nil
}

// Render draws one frame. Shaders recompiled on disk since the last frame
// are picked up first; a failed rebuild keeps the previous pipeline.
func (vr *VulkanRenderer) Render(packet *metadata.RenderPacket) error {
	if vr.watcher != nil {
		vr.reloadShaders(vr.watcher.Changed())
	}
	return vr.scheduler.Frame(packet)
}

func (vr *VulkanRenderer) reloadShaders(changed []string) {
	for _, pipeline := range []*VulkanPipeline{vr.geometry, vr.lighting} {
		for _, source := range changed {
			if !pipeline.UsesShader(source) {
				continue
			}
			if err := pipeline.Rebuild(); err != nil {
				core.LogError("hot reload of %s: %s", pipeline.Name, err.Error())
			}
			break
		}
	}
}

// UploadModel copies every mesh of model to the GPU and creates its material
// group. The returned ids go into RenderObject.
func (vr *VulkanRenderer) UploadModel(model *metadata.ModelData) (int, int, error) {
	if len(model.Meshes) == 0 {
		return -1, -1, core.Errorf(core.ErrorKindInvalidState, "vulkan.UploadModel", "model %s has no meshes", model.Name)
	}
	if uint32(len(vr.resources.Materials)) >= VULKAN_MAX_MATERIAL_COUNT {
		return -1, -1, core.Errorf(core.ErrorKindInvalidState, "vulkan.UploadModel", "material group limit %d reached", VULKAN_MAX_MATERIAL_COUNT)
	}
	if meshes := vr.resources.MeshCount() + len(model.Meshes); uint32(meshes) > VULKAN_MAX_GEOMETRY_COUNT {
		return -1, -1, core.Errorf(core.ErrorKindInvalidState, "vulkan.UploadModel", "model %s would bring the mesh count to %d, limit is %d", model.Name, meshes, VULKAN_MAX_GEOMETRY_COUNT)
	}

	resource := &ModelResource{Name: model.Name}
	textures := make([]*VulkanImage, 0, len(model.Meshes))
	for i := range model.Meshes {
		mesh := &model.Meshes[i]
		uploaded, err := uploadMesh(vr.context, vr.transfer, mesh)
		if err != nil {
			return -1, -1, fmt.Errorf("model %s: %w", model.Name, err)
		}
		resource.Meshes = append(resource.Meshes, uploaded)
		textures = append(textures, vr.resources.Textures.Get(vr.context, vr.graphicsTransfer, mesh.DiffuseTexture))
	}

	material, err := NewMaterialGroup(vr.context, model.Name, vr.geometry.SetLayout, vr.sampler, textures)
	if err != nil {
		return -1, -1, err
	}

	vr.resources.Models = append(vr.resources.Models, resource)
	vr.resources.Materials = append(vr.resources.Materials, material)
	core.LogDebug("Model %s uploaded: %d meshes, %d textures cached.", model.Name, len(resource.Meshes), vr.resources.Textures.Len())
	return len(vr.resources.Models) - 1, len(vr.resources.Materials) - 1, nil
}

func (vr *VulkanRenderer) Lights() *lighting.Manager {
	return vr.lights
}

func (vr *VulkanRenderer) FrameCount() uint64 {
	if vr.scheduler == nil {
		return 0
	}
	return vr.scheduler.FrameCount()
}

// Shutdown waits for the GPU, persists the pipeline caches and releases
// everything in reverse creation order. It is safe after a failed Initialize.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.context == nil {
		return nil
	}
	if vr.watcher != nil {
		vr.watcher.Shutdown()
		vr.watcher = nil
	}

	device := vr.context.Device.LogicalDevice
	if device != nil {
		if res := vk.DeviceWaitIdle(device); res != vk.Success {
			core.LogWarn("device wait idle: %s", VulkanResultString(res))
		}
	}

	for _, pipeline := range []*VulkanPipeline{vr.geometry, vr.lighting} {
		if pipeline != nil {
			pipeline.WritePipelineCacheFile(true)
		}
	}
	if vr.lights != nil {
		vr.lights.Destroy()
	}

	core.LogDebug("Destroying %d Vulkan objects...", vr.context.Ledger.Len())
	vr.context.Ledger.Flush()

	if device != nil {
		DeviceDestroy(vr.context)
	}
	if vr.context.Surface != nil {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = nil
	}
	if vr.context.debugMessenger != nil {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = nil
	}
	if vr.context.Instance != nil {
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}
	core.LogInfo("Vulkan renderer shut down.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
