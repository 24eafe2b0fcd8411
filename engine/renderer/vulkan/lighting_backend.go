package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
)

// LightingBackend gives the lighting manager access to storage buffers
// uploaded through a transfer channel and to the scene sets of the frame
// slots. The manager owns the buffers it creates and destroys them itself.
type LightingBackend struct {
	context   *VulkanContext
	transfer  *TransferChannel
	sceneSets []vk.DescriptorSet
}

func NewLightingBackend(context *VulkanContext, transfer *TransferChannel, sceneSets []vk.DescriptorSet) *LightingBackend {
	return &LightingBackend{
		context:   context,
		transfer:  transfer,
		sceneSets: sceneSets,
	}
}

func (lb *LightingBackend) CreateStorageBuffer(data []byte) (lighting.Buffer, error) {
	return lb.transfer.UploadBuffer(data, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), "light storage")
}

func (lb *LightingBackend) UpdateStorageBuffer(buffer lighting.Buffer, data []byte) error {
	vb, err := asBuffer(buffer)
	if err != nil {
		return err
	}
	return lb.transfer.CopyToBuffer(vb, data)
}

func (lb *LightingBackend) DestroyBuffer(buffer lighting.Buffer) {
	vb, err := asBuffer(buffer)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	vb.Destroy(lb.context)
}

func (lb *LightingBackend) WriteDescriptors(slot int, writes []lighting.DescriptorWrite) error {
	if slot < 0 || slot >= len(lb.sceneSets) {
		return core.Errorf(core.ErrorKindInvalidState, "vulkan.LightingBackend.WriteDescriptors", "slot %d out of range [0,%d)", slot, len(lb.sceneSets))
	}
	out := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		vb, err := asBuffer(w.Buffer)
		if err != nil {
			return err
		}
		out = append(out, BufferWrite(lb.sceneSets[slot], w.Binding, vk.DescriptorTypeStorageBuffer, vb.Handle, w.Offset, w.Range))
	}
	UpdateDescriptorSets(lb.context, out)
	return nil
}

func asBuffer(buffer lighting.Buffer) (*Buffer, error) {
	vb, ok := buffer.(*Buffer)
	if !ok || vb == nil {
		return nil, core.Errorf(core.ErrorKindInvalidState, "vulkan.LightingBackend", "%T is not a vulkan buffer", buffer)
	}
	return vb, nil
}
