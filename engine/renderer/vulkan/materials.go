package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// MaterialGroup holds one descriptor set per mesh of a model, bound at set 1
// of the geometry pipeline. Binding 0 is the diffuse texture.
type MaterialGroup struct {
	Name string
	Sets []vk.DescriptorSet
	pool vk.DescriptorPool
}

// NewMaterialGroup allocates a pool sized for textures and writes one
// combined image sampler set per texture.
func NewMaterialGroup(context *VulkanContext, name string, layout vk.DescriptorSetLayout, sampler vk.Sampler, textures []*VulkanImage) (*MaterialGroup, error) {
	count := uint32(len(textures))
	if count == 0 {
		return &MaterialGroup{Name: name}, nil
	}

	pool, err := NewDescriptorPool(context, count, []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: count},
	}, fmt.Sprintf("material pool %s", name))
	if err != nil {
		return nil, err
	}

	sets, err := AllocateDescriptorSets(context, pool, layout, len(textures))
	if err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, len(textures))
	for i, texture := range textures {
		writes[i] = ImageWrite(sets[i], 0, sampler, texture.View)
	}
	UpdateDescriptorSets(context, writes)

	return &MaterialGroup{
		Name: name,
		Sets: sets,
		pool: pool,
	}, nil
}
