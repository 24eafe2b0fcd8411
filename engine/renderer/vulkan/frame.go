package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/math"
)

// FrameOverlap is the number of frames the CPU may record ahead of the GPU.
const FrameOverlap = 3

// SlotIndex maps a frame number onto the slot whose resources it uses.
func SlotIndex(frame uint64) int {
	return int(frame % FrameOverlap)
}

var cameraDataSize = uint64(unsafe.Sizeof(math.GPUCameraData{}))

/**
 * @brief Everything one frame in flight records into and waits on. A slot is
 * reused only after its fence reports the GPU finished the previous frame
 * recorded with it.
 */
type FrameSlot struct {
	Index int

	CommandPool      vk.CommandPool
	GeometryCommands *VulkanCommandBuffer
	LightingCommands *VulkanCommandBuffer

	// signaled by acquire, waited on by the geometry submit
	PresentSemaphore vk.Semaphore
	// geometry to lighting
	PassSemaphore vk.Semaphore
	// lighting to present
	RenderSemaphore vk.Semaphore
	RenderFence     *VulkanFence

	CameraBuffer *Buffer
	SceneSet     vk.DescriptorSet
}

func NewSemaphore(context *VulkanContext, label string) (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &semaphore); res != vk.Success {
		err := ResultError("vulkan.NewSemaphore", res)
		core.LogError(err.Error())
		return nil, err
	}
	context.Ledger.Push(LedgerSemaphore, semaphore, label)
	return semaphore, nil
}

// NewFrameSlot creates the synchronization objects, command buffers and the
// camera uniform buffer of slot index. The fence starts signaled so the
// first wait on it returns at once.
func NewFrameSlot(context *VulkanContext, index int) (*FrameSlot, error) {
	slot := &FrameSlot{Index: index}
	label := func(what string) string { return fmt.Sprintf("frame %d %s", index, what) }

	var err error
	if slot.CommandPool, err = NewCommandPool(context, context.Device.GraphicsQueueIndex, label("command pool")); err != nil {
		return nil, err
	}
	if slot.GeometryCommands, err = NewVulkanCommandBuffer(context, slot.CommandPool, true); err != nil {
		return nil, err
	}
	if slot.LightingCommands, err = NewVulkanCommandBuffer(context, slot.CommandPool, true); err != nil {
		return nil, err
	}
	if slot.PresentSemaphore, err = NewSemaphore(context, label("present semaphore")); err != nil {
		return nil, err
	}
	if slot.PassSemaphore, err = NewSemaphore(context, label("pass semaphore")); err != nil {
		return nil, err
	}
	if slot.RenderSemaphore, err = NewSemaphore(context, label("render semaphore")); err != nil {
		return nil, err
	}
	if slot.RenderFence, err = NewFence(context, true, label("render fence")); err != nil {
		return nil, err
	}

	slot.CameraBuffer, err = BufferCreate(context, cameraDataSize,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		nil, label("camera buffer"))
	if err != nil {
		return nil, err
	}
	slot.CameraBuffer.Track(context.Ledger)
	return slot, nil
}

// BindSceneSet points binding 0 of set at the slot's camera buffer.
func (fs *FrameSlot) BindSceneSet(context *VulkanContext, set vk.DescriptorSet) {
	fs.SceneSet = set
	UpdateDescriptorSets(context, []vk.WriteDescriptorSet{
		BufferWrite(set, lighting.BindingCamera, vk.DescriptorTypeUniformBuffer, fs.CameraBuffer.Handle, 0, cameraDataSize),
	})
}

func (fs *FrameSlot) WriteCamera(context *VulkanContext, camera *math.GPUCameraData) error {
	return fs.CameraBuffer.LoadData(context, 0, core.ValueBytes(camera))
}
