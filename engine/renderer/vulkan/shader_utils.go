package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The stage the module runs in. */
	Stage vk.ShaderStageFlagBits
	/** @brief The source the SPIR-V was loaded from. */
	Source string
}

// NewShaderStage wraps SPIR-V words in a shader module. Modules live only
// until the pipeline using them is built.
func NewShaderStage(context *VulkanContext, source string, stage vk.ShaderStageFlagBits, code []uint32) (*VulkanShaderStage, error) {
	if len(code) == 0 {
		return nil, core.Errorf(core.ErrorKindShaderCompileFailed, "vulkan.NewShaderStage", "%s has no SPIR-V", source)
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}

	var module vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
		err := core.NewError(core.ErrorKindShaderCompileFailed, "vulkan.NewShaderStage",
			fmt.Errorf("%s: %w", source, ResultError("vulkan.CreateShaderModule", res)))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanShaderStage{
		Handle: module,
		Stage:  stage,
		Source: source,
	}, nil
}

func (s *VulkanShaderStage) CreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}
