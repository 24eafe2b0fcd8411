package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameWaitFence
	FrameAcquire
	FrameRecordGeometry
	FrameRecordLighting
	FrameSubmit
	FramePresent
)

var frameStateNames = [...]string{
	FrameIdle:           "idle",
	FrameWaitFence:      "wait fence",
	FrameAcquire:        "acquire",
	FrameRecordGeometry: "record geometry",
	FrameRecordLighting: "record lighting",
	FrameSubmit:         "submit",
	FramePresent:        "present",
}

func (s FrameState) String() string {
	if s >= 0 && int(s) < len(frameStateNames) {
		return frameStateNames[s]
	}
	return fmt.Sprintf("frame state %d", int(s))
}

// nextState is the successor of s in a successful frame. Present wraps
// around to Idle.
func nextState(s FrameState) FrameState {
	if s == FramePresent {
		return FrameIdle
	}
	return s + 1
}

// PassExecutor records one pass into an already begun command buffer.
type PassExecutor interface {
	Record(commandBuffer *VulkanCommandBuffer, slot *FrameSlot, imageIndex uint32, packet *metadata.RenderPacket) error
}

// LightingUpdater refreshes the light buffers bound to a slot's scene set.
type LightingUpdater interface {
	Update(slot int) error
}

// frameSteps performs the work of each state. The frame scheduler drives it
// through the state machine; tests replace it.
type frameSteps interface {
	step(state FrameState, slot int, packet *metadata.RenderPacket) error
}

/**
 * @brief Drives one frame per call through wait, acquire, record, submit and
 * present, rotating over FrameOverlap slots.
 */
type FrameScheduler struct {
	context *VulkanContext
	Slots   [FrameOverlap]*FrameSlot

	geometry PassExecutor
	lighting PassExecutor
	lights   LightingUpdater

	fenceTimeout   uint64
	acquireTimeout uint64

	frameCount uint64
	state      FrameState
	imageIndex uint32
	steps      frameSteps
}

type FrameSchedulerConfig struct {
	FenceTimeout   uint64
	AcquireTimeout uint64
	Geometry       PassExecutor
	Lighting       PassExecutor
	Lights         LightingUpdater
}

func NewFrameScheduler(context *VulkanContext, slots [FrameOverlap]*FrameSlot, config FrameSchedulerConfig) *FrameScheduler {
	fs := &FrameScheduler{
		context:        context,
		Slots:          slots,
		geometry:       config.Geometry,
		lighting:       config.Lighting,
		lights:         config.Lights,
		fenceTimeout:   config.FenceTimeout,
		acquireTimeout: config.AcquireTimeout,
		state:          FrameIdle,
	}
	fs.steps = fs
	return fs
}

func (fs *FrameScheduler) FrameCount() uint64 {
	return fs.frameCount
}

func (fs *FrameScheduler) State() FrameState {
	return fs.state
}

// CurrentSlot is the slot the next call to Frame records into.
func (fs *FrameScheduler) CurrentSlot() int {
	return SlotIndex(fs.frameCount)
}

// Frame renders packet. Any failure leaves the scheduler idle and is returned
// with its error kind; the frame counter only advances once the frame was
// submitted.
func (fs *FrameScheduler) Frame(packet *metadata.RenderPacket) error {
	if fs.state != FrameIdle {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.FrameScheduler.Frame", "frame started while in state %s", fs.state)
	}
	slot := fs.CurrentSlot()

	for state := nextState(FrameIdle); state != FrameIdle; state = nextState(state) {
		fs.state = state
		if state == FramePresent {
			fs.frameCount++
		}
		if err := fs.steps.step(state, slot, packet); err != nil {
			fs.state = FrameIdle
			return err
		}
	}
	fs.state = FrameIdle
	return nil
}

func (fs *FrameScheduler) step(state FrameState, index int, packet *metadata.RenderPacket) error {
	slot := fs.Slots[index]

	switch state {
	case FrameWaitFence:
		if err := slot.RenderFence.Wait(fs.context, fs.fenceTimeout); err != nil {
			return err
		}
		if fs.lights != nil {
			return fs.lights.Update(index)
		}
		return nil

	case FrameAcquire:
		imageIndex, err := fs.context.Swapchain.AcquireNextImage(fs.context, fs.acquireTimeout, slot.PresentSemaphore)
		if err != nil {
			return err
		}
		fs.imageIndex = imageIndex
		return nil

	case FrameRecordGeometry:
		if err := slot.WriteCamera(fs.context, &packet.Camera); err != nil {
			return err
		}
		return fs.record(slot.GeometryCommands, fs.geometry, slot, packet)

	case FrameRecordLighting:
		return fs.record(slot.LightingCommands, fs.lighting, slot, packet)

	case FrameSubmit:
		graphics := fs.context.Device.GraphicsQueueIndex
		queue := fs.context.Device.GraphicsQueue

		err := slot.GeometryCommands.Submit(fs.context, graphics, queue, vk.SubmitInfo{
			WaitSemaphoreCount:   1,
			PWaitSemaphores:      []vk.Semaphore{slot.PresentSemaphore},
			PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
			SignalSemaphoreCount: 1,
			PSignalSemaphores:    []vk.Semaphore{slot.PassSemaphore},
		}, vk.NullFence)
		if err != nil {
			return err
		}

		// the fence is reset only once a submit that signals it is certain
		if err := slot.RenderFence.Reset(fs.context); err != nil {
			return err
		}
		return slot.LightingCommands.Submit(fs.context, graphics, queue, vk.SubmitInfo{
			WaitSemaphoreCount:   1,
			PWaitSemaphores:      []vk.Semaphore{slot.PassSemaphore},
			PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)},
			SignalSemaphoreCount: 1,
			PSignalSemaphores:    []vk.Semaphore{slot.RenderSemaphore},
		}, slot.RenderFence.Handle)

	case FramePresent:
		return fs.context.Swapchain.Present(fs.context, slot.RenderSemaphore, fs.imageIndex)
	}
	return core.Errorf(core.ErrorKindInvalidState, "vulkan.FrameScheduler.step", "no work for state %s", state)
}

func (fs *FrameScheduler) record(commandBuffer *VulkanCommandBuffer, pass PassExecutor, slot *FrameSlot, packet *metadata.RenderPacket) error {
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(true, false, false); err != nil {
		return err
	}
	if err := pass.Record(commandBuffer, slot, fs.imageIndex, packet); err != nil {
		return err
	}
	return commandBuffer.End()
}

// WaitIdle blocks until every slot's last submission has completed.
func (fs *FrameScheduler) WaitIdle() error {
	for _, slot := range fs.Slots {
		if slot == nil {
			continue
		}
		if err := slot.RenderFence.Wait(fs.context, fs.fenceTimeout); err != nil {
			return err
		}
	}
	return nil
}
