package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
}

// A family index of -1 means the device has no queue of that type.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	TransferFamilyIndex int32
}

// QueueFamilies returns the distinct family indices used by the device, graphics first.
func (d *VulkanDevice) QueueFamilies() []uint32 {
	families := []uint32{d.GraphicsQueueIndex}
	for _, idx := range []uint32{d.PresentQueueIndex, d.TransferQueueIndex} {
		seen := false
		for _, f := range families {
			if f == idx {
				seen = true
			}
		}
		if !seen {
			families = append(families, idx)
		}
	}
	return families
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := context.Device.QueueFamilies()
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(context.Device.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available["VK_KHR_portability_subset"]; ok {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	var device vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device); res != vk.Success {
		err := ResultError("vulkan.DeviceCreate", res)
		core.LogError(err.Error())
		return err
	}
	context.Device.LogicalDevice = device
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(device, context.Device.GraphicsQueueIndex, 0, &context.Device.GraphicsQueue)
	vk.GetDeviceQueue(device, context.Device.PresentQueueIndex, 0, &context.Device.PresentQueue)
	vk.GetDeviceQueue(device, context.Device.TransferQueueIndex, 0, &context.Device.TransferQueue)
	for _, idx := range indices {
		context.Locks.SetQueueFamily(idx)
	}
	core.LogInfo("Queues obtained.")

	if !DeviceDetectDepthFormat(context.Device) {
		err := core.Errorf(core.ErrorKindResourceCreation, "vulkan.DeviceCreate", "no supported depth format")
		core.LogError(err.Error())
		return err
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil
	context.Device.TransferQueue = nil

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return ResultError("vulkan.DeviceQuerySwapchainSupport", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return ResultError("vulkan.DeviceQuerySwapchainSupport", res)
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return ResultError("vulkan.DeviceQuerySwapchainSupport", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return ResultError("vulkan.DeviceQuerySwapchainSupport", res)
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return ResultError("vulkan.DeviceQuerySwapchainSupport", res)
		}
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		// attachments are created with optimal tiling
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return ResultError("vulkan.SelectPhysicalDevice", res)
	}
	if physicalDeviceCount == 0 {
		err := core.Errorf(core.ErrorKindResourceCreation, "vulkan.SelectPhysicalDevice", "no devices which support Vulkan were found")
		core.LogError(err.Error())
		return err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return ResultError("vulkan.SelectPhysicalDevice", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// Any suitable device will do; a discrete GPU wins over the rest.
	selected := -1
	for i := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
		features.Deref()

		var support VulkanSwapchainSupportInfo
		queueInfo, ok := PhysicalDeviceMeetsRequirements(physicalDevices[i], context.Surface, &properties, &features, &requirements, &support)
		if !ok {
			continue
		}
		if selected >= 0 && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}

		selected = i
		context.Device.PhysicalDevice = physicalDevices[i]
		context.Device.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
		context.Device.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
		context.Device.TransferQueueIndex = uint32(queueInfo.TransferFamilyIndex)
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.SwapchainSupport = support
	}

	if selected < 0 {
		err := core.Errorf(core.ErrorKindResourceCreation, "vulkan.SelectPhysicalDevice", "no physical devices were found which meet the requirements")
		core.LogError(err.Error())
		return err
	}

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(context.Device.PhysicalDevice, &memory)
	memory.Deref()
	context.Device.Memory = memory

	logDevice(context.Device)
	return nil
}

func logDevice(device *VulkanDevice) {
	properties := device.Properties
	core.LogInfo("Selected device: '%s'.", fixedString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	memory := device.Memory
	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		heap := memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
	core.LogDebug("Graphics Family Index: %d", device.GraphicsQueueIndex)
	core.LogDebug("Present Family Index:  %d", device.PresentQueueIndex)
	core.LogDebug("Transfer Family Index: %d", device.TransferQueueIndex)
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, ResultError("vulkan.EnumerateDeviceExtensionProperties", res)
	}
	out := make(map[string]struct{}, count)
	if count == 0 {
		return out, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return nil, ResultError("vulkan.EnumerateDeviceExtensionProperties", res)
	}
	for i := range available {
		available[i].Deref()
		out[fixedString(available[i].ExtensionName[:])] = struct{}{}
	}
	return out, nil
}

// PhysicalDeviceMeetsRequirements checks queues, swapchain support, extensions
// and features. Queue families are chosen per role; the transfer family is the
// one with the fewest other capabilities, to prefer a dedicated transfer queue.
func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outSwapchainSupport *VulkanSwapchainSupportInfo) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	name := fixedString(properties.DeviceName[:])
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		currentTransferScore := 0

		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if queueInfo.GraphicsFamilyIndex < 0 {
				queueInfo.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			currentTransferScore++
		}
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			queueInfo.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			core.LogWarn("%s: surface support query failed: %s", name, VulkanResultString(res))
			return queueInfo, false
		}
		// prefer presenting from the graphics family
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || queueInfo.GraphicsFamilyIndex == int32(i)) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogInfo("Graphics | Present | Transfer | Name")
	core.LogInfo("%8d | %7d | %8d | %s", queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex, queueInfo.TransferFamilyIndex, name)

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Present && queueInfo.PresentFamilyIndex < 0) ||
		(requirements.Transfer && queueInfo.TransferFamilyIndex < 0) {
		core.LogInfo("%s does not have the required queues, skipping.", name)
		return queueInfo, false
	}

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogInfo("%s: %s, skipping.", name, err)
		return queueInfo, false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device)
		if err != nil {
			return queueInfo, false
		}
		for _, ext := range requirements.DeviceExtensionNames {
			if _, ok := available[ext]; !ok {
				core.LogInfo("Required extension not found: '%s', skipping device.", ext)
				return queueInfo, false
			}
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, false
	}
	return queueInfo, true
}

func (d *VulkanDevice) String() string {
	return fmt.Sprintf("%s (graphics %d, present %d, transfer %d)",
		fixedString(d.Properties.DeviceName[:]), d.GraphicsQueueIndex, d.PresentQueueIndex, d.TransferQueueIndex)
}
