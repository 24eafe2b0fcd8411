package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

/**
 * @brief A command pool and fence dedicated to one-shot uploads on a single queue.
 * Every upload is synchronous: it returns after the GPU finished the copy and
 * the staging buffer is gone.
 */
type TransferChannel struct {
	context *VulkanContext
	family  uint32
	queue   vk.Queue
	pool    vk.CommandPool
	fence   *VulkanFence
	timeout uint64
	// families that read the uploaded buffers
	consumers []uint32
	label     string
}

// NewTransferChannel creates the channel's pool and unsignaled fence on
// family. consumers lists the queue families that will read uploaded buffers.
func NewTransferChannel(context *VulkanContext, family uint32, queue vk.Queue, timeoutNS uint64, consumers []uint32, label string) (*TransferChannel, error) {
	pool, err := NewCommandPool(context, family, label+" pool")
	if err != nil {
		return nil, err
	}
	fence, err := NewFence(context, false, label+" fence")
	if err != nil {
		return nil, err
	}
	return &TransferChannel{
		context:   context,
		family:    family,
		queue:     queue,
		pool:      pool,
		fence:     fence,
		timeout:   timeoutNS,
		consumers: append([]uint32{family}, consumers...),
		label:     label,
	}, nil
}

func (tc *TransferChannel) Family() uint32 {
	return tc.family
}

func (tc *TransferChannel) staging(data []byte, label string) (*Buffer, error) {
	staging, err := BufferCreate(tc.context, uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		nil, label+" staging")
	if err != nil {
		return nil, err
	}
	if err := staging.LoadData(tc.context, 0, data); err != nil {
		staging.Destroy(tc.context)
		return nil, err
	}
	return staging, nil
}

// UploadBuffer copies data into a new device-local buffer with usage plus
// TRANSFER_DST. The caller owns the returned buffer.
func (tc *TransferChannel) UploadBuffer(data []byte, usage vk.BufferUsageFlags, label string) (*Buffer, error) {
	if len(data) == 0 {
		return nil, core.Errorf(core.ErrorKindInvalidState, "vulkan.TransferChannel.UploadBuffer", "no data for %s", label)
	}

	destination, err := BufferCreate(tc.context, uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		tc.consumers, label)
	if err != nil {
		return nil, err
	}

	if err := tc.CopyToBuffer(destination, data); err != nil {
		destination.Destroy(tc.context)
		return nil, err
	}
	return destination, nil
}

// CopyToBuffer overwrites the start of an existing device-local buffer.
func (tc *TransferChannel) CopyToBuffer(destination *Buffer, data []byte) error {
	if uint64(len(data)) > destination.Size() {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.TransferChannel.CopyToBuffer", "%d bytes do not fit %s (%d bytes)", len(data), destination.Label, destination.Size())
	}
	staging, err := tc.staging(data, destination.Label)
	if err != nil {
		return err
	}
	defer staging.Destroy(tc.context)

	return tc.submit(func(cb *VulkanCommandBuffer) error {
		region := vk.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(len(data)),
		}
		vk.CmdCopyBuffer(cb.Handle, staging.Handle, destination.Handle, 1, []vk.BufferCopy{region})
		return nil
	})
}

// UploadImage creates a sampled image from texture pixels and leaves it in
// SHADER_READ_ONLY_OPTIMAL. The channel must be bound to a graphics capable
// queue for the final barrier.
func (tc *TransferChannel) UploadImage(texture *metadata.TextureData, format vk.Format) (*VulkanImage, error) {
	if texture.Width == 0 || texture.Height == 0 || texture.Size() != uint64(texture.Width)*uint64(texture.Height)*4 {
		return nil, core.Errorf(core.ErrorKindTextureLoadFailed, "vulkan.TransferChannel.UploadImage", "texture %s has %d bytes for %dx%d", texture.Name, len(texture.Pixels), texture.Width, texture.Height)
	}

	image, err := ImageCreate(tc.context, texture.Width, texture.Height, format,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit), true, fmt.Sprintf("texture %s", texture.Name))
	if err != nil {
		return nil, err
	}

	staging, err := tc.staging(texture.Pixels, image.Label)
	if err != nil {
		image.Destroy(tc.context)
		return nil, err
	}
	defer staging.Destroy(tc.context)

	err = tc.submit(func(cb *VulkanCommandBuffer) error {
		if err := image.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		image.CopyFromBuffer(cb, staging.Handle)
		return image.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		image.Destroy(tc.context)
		return nil, err
	}
	return image, nil
}

// oneShot is the life cycle of a single-use command buffer, split in steps.
type oneShot struct {
	begin  func() (*VulkanCommandBuffer, error)
	end    func(cb *VulkanCommandBuffer) error
	submit func(cb *VulkanCommandBuffer) error
	// wait blocks until the GPU is done with the buffer
	wait func() error
	// drain idles the queue when wait failed, so the buffer may be freed
	drain func()
	free  func(cb *VulkanCommandBuffer)
}

// run records, submits and waits. The buffer is freed on every path after a
// successful begin.
func (o oneShot) run(record func(cb *VulkanCommandBuffer) error) error {
	cb, err := o.begin()
	if err != nil {
		return err
	}
	defer o.free(cb)

	if err := record(cb); err != nil {
		return err
	}
	if err := o.end(cb); err != nil {
		return err
	}
	if err := o.submit(cb); err != nil {
		return err
	}
	if err := o.wait(); err != nil {
		o.drain()
		return err
	}
	return nil
}

// submit records commands into a one-time buffer, submits it with the channel
// fence and blocks until the copy completes. The pool is reset afterwards.
func (tc *TransferChannel) submit(record func(cb *VulkanCommandBuffer) error) error {
	shot := oneShot{
		begin: func() (*VulkanCommandBuffer, error) {
			return AllocateAndBeginSingleUse(tc.context, tc.pool)
		},
		end: func(cb *VulkanCommandBuffer) error {
			return cb.End()
		},
		submit: func(cb *VulkanCommandBuffer) error {
			if err := cb.Submit(tc.context, tc.family, tc.queue, vk.SubmitInfo{}, tc.fence.Handle); err != nil {
				return err
			}
			tc.fence.IsSignaled = false
			return nil
		},
		wait: func() error {
			if err := tc.fence.Wait(tc.context, tc.timeout); err != nil {
				return fmt.Errorf("%s upload: %w", tc.label, err)
			}
			return tc.fence.Reset(tc.context)
		},
		drain: func() {
			_ = tc.context.Locks.SafeQueueCall(tc.family, func() error {
				vk.QueueWaitIdle(tc.queue)
				return nil
			})
		},
		free: func(cb *VulkanCommandBuffer) {
			cb.Free(tc.context, tc.pool)
		},
	}
	if err := shot.run(record); err != nil {
		return err
	}
	if res := vk.ResetCommandPool(tc.context.Device.LogicalDevice, tc.pool, 0); res != vk.Success {
		return ResultError("vulkan.ResetCommandPool", res)
	}
	return nil
}
