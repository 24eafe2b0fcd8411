package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

// DescriptorSetLayoutBuilder collects bindings in order. Each binding gets the
// index equal to the number of bindings added before it.
type DescriptorSetLayoutBuilder struct {
	bindings []vk.DescriptorSetLayoutBinding
}

func (b *DescriptorSetLayoutBuilder) AddBinding(descriptorType vk.DescriptorType, stages vk.ShaderStageFlags) uint32 {
	index := uint32(len(b.bindings))
	b.bindings = append(b.bindings, vk.DescriptorSetLayoutBinding{
		Binding:         index,
		DescriptorType:  descriptorType,
		DescriptorCount: 1,
		StageFlags:      stages,
	})
	return index
}

func (b *DescriptorSetLayoutBuilder) Bindings() []vk.DescriptorSetLayoutBinding {
	return b.bindings
}

func (b *DescriptorSetLayoutBuilder) Len() int {
	return len(b.bindings)
}

// Build creates the layout and records it in the ledger.
func (b *DescriptorSetLayoutBuilder) Build(context *VulkanContext, label string) (vk.DescriptorSetLayout, error) {
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(b.bindings)),
		PBindings:    b.bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.CreateDescriptorSetLayout(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	context.Ledger.Push(LedgerDescriptorSetLayout, layout, label)
	return layout, nil
}

// SetDemand is a number of sets to allocate with one layout.
type SetDemand struct {
	Bindings []vk.DescriptorSetLayoutBinding
	Sets     int
}

/**
 * @brief Sums the descriptors every demand needs, per descriptor type, in the
 * order the types first appear. Also returns the total number of sets.
 */
func PoolSizesFor(demands ...SetDemand) ([]vk.DescriptorPoolSize, uint32) {
	var sizes []vk.DescriptorPoolSize
	index := make(map[vk.DescriptorType]int)
	var maxSets uint32
	for _, d := range demands {
		if d.Sets <= 0 {
			continue
		}
		maxSets += uint32(d.Sets)
		for _, b := range d.Bindings {
			i, ok := index[b.DescriptorType]
			if !ok {
				i = len(sizes)
				index[b.DescriptorType] = i
				sizes = append(sizes, vk.DescriptorPoolSize{Type: b.DescriptorType})
			}
			sizes[i].DescriptorCount += b.DescriptorCount * uint32(d.Sets)
		}
	}
	return sizes, maxSets
}

func NewDescriptorPool(context *VulkanContext, maxSets uint32, sizes []vk.DescriptorPoolSize, label string) (vk.DescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.CreateDescriptorPool(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	context.Ledger.Push(LedgerDescriptorPool, pool, label)
	return pool, nil
}

// AllocateDescriptorSets allocates count sets sharing layout. Sets are freed
// with their pool.
func AllocateDescriptorSets(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout, count int) ([]vk.DescriptorSet, error) {
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}

	sets := make([]vk.DescriptorSet, count)
	err := context.Locks.SafeCall(DescriptorManagement, func() error {
		return ResultError("vulkan.AllocateDescriptorSets", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &(sets[0])))
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return sets, nil
}

func BufferWrite(set vk.DescriptorSet, binding uint32, descriptorType vk.DescriptorType, buffer vk.Buffer, offset, size uint64) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	}
}

func ImageWrite(set vk.DescriptorSet, binding uint32, sampler vk.Sampler, view vk.ImageView) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
}

// UpdateDescriptorSets applies writes in a single call.
func UpdateDescriptorSets(context *VulkanContext, writes []vk.WriteDescriptorSet) {
	if len(writes) == 0 {
		return
	}
	_ = context.Locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}
