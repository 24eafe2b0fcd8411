package vulkan

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// PushConstants is the per-draw block of the geometry vertex shader.
type PushConstants struct {
	Data         mgl32.Vec4
	RenderMatrix mgl32.Mat4
}

var pushConstantsSize = uint32(unsafe.Sizeof(PushConstants{}))

// GeometryPass draws every render object into the G-buffer instance of the
// frame slot.
type GeometryPass struct {
	Pipeline  *VulkanPipeline
	Resources *ResourceStore
}

type meshDraw struct {
	mesh      *MeshResource
	set       vk.DescriptorSet
	transform mgl32.Mat4
}

// draws resolves the packet into one draw per mesh. Every mesh must have a
// material set of its own.
func (gp *GeometryPass) draws(packet *metadata.RenderPacket) ([]meshDraw, error) {
	const op = "vulkan.GeometryPass.Record"
	models := gp.Resources.Models
	materials := gp.Resources.Materials

	var draws []meshDraw
	for _, object := range packet.Objects {
		if object.BufferGroup < 0 || object.BufferGroup >= len(models) {
			return nil, core.Errorf(core.ErrorKindInvalidState, op, "buffer group %d out of range [0,%d)", object.BufferGroup, len(models))
		}
		if object.MaterialGroup < 0 || object.MaterialGroup >= len(materials) {
			return nil, core.Errorf(core.ErrorKindInvalidState, op, "material group %d out of range [0,%d)", object.MaterialGroup, len(materials))
		}
		model := models[object.BufferGroup]
		material := materials[object.MaterialGroup]
		if len(material.Sets) < len(model.Meshes) {
			return nil, core.Errorf(core.ErrorKindInvalidState, op, "material group %s has %d sets for the %d meshes of %s",
				material.Name, len(material.Sets), len(model.Meshes), model.Name)
		}
		for i, mesh := range model.Meshes {
			draws = append(draws, meshDraw{mesh: mesh, set: material.Sets[i], transform: object.Transform})
		}
	}
	return draws, nil
}

func (gp *GeometryPass) Record(commandBuffer *VulkanCommandBuffer, slot *FrameSlot, _ uint32, packet *metadata.RenderPacket) error {
	draws, err := gp.draws(packet)
	if err != nil {
		return err
	}

	framebuffer := gp.Pipeline.Framebuffer
	framebuffer.Begin(commandBuffer, slot.Index)
	defer framebuffer.End(commandBuffer)

	gp.Pipeline.Bind(commandBuffer)
	gp.Pipeline.BindDescriptorSets(commandBuffer, 0, slot.SceneSet)

	for _, d := range draws {
		constants := PushConstants{RenderMatrix: d.transform}
		gp.Pipeline.BindDescriptorSets(commandBuffer, 1, d.set)
		vk.CmdBindIndexBuffer(commandBuffer.Handle, d.mesh.Indices.Handle, 0, vk.IndexTypeUint32)
		vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 3, d.mesh.vertexBuffers(), []vk.DeviceSize{0, 0, 0})
		vk.CmdPushConstants(commandBuffer.Handle, gp.Pipeline.PipelineLayout,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, pushConstantsSize, unsafe.Pointer(&constants))
		vk.CmdDrawIndexed(commandBuffer.Handle, d.mesh.IndexCount, 1, 0, 0, 0)
	}
	return nil
}

// LightingPass shades a fullscreen triangle into the swapchain image,
// reading the G-buffer written by the geometry pass of the same slot.
type LightingPass struct {
	Pipeline *VulkanPipeline
}

func (lp *LightingPass) Record(commandBuffer *VulkanCommandBuffer, slot *FrameSlot, imageIndex uint32, _ *metadata.RenderPacket) error {
	framebuffer := lp.Pipeline.Framebuffer
	if int(imageIndex) >= framebuffer.Instances() {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.LightingPass.Record", "image %d has no framebuffer (%d instances)", imageIndex, framebuffer.Instances())
	}
	if slot.Index >= len(lp.Pipeline.DescriptorSets) {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.LightingPass.Record", "no G-buffer set for slot %d", slot.Index)
	}

	framebuffer.Begin(commandBuffer, int(imageIndex))
	lp.Pipeline.Bind(commandBuffer)
	lp.Pipeline.BindDescriptorSets(commandBuffer, 0, slot.SceneSet, lp.Pipeline.DescriptorSets[slot.Index])
	vk.CmdDraw(commandBuffer.Handle, 3, 1, 0, 0)
	framebuffer.End(commandBuffer)
	return nil
}
