package vulkan

import vk "github.com/goki/vulkan"

// VertexLayout is the vertex input description of a pipeline. Layouts are
// values built by composing streams, so a pipeline can have any number of them
// including none.
type VertexLayout struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// EmptyVertexLayout is used by pipelines that generate their vertices in the
// shader.
func EmptyVertexLayout() VertexLayout {
	return VertexLayout{}
}

// WithStream returns a copy of the layout with one more per-vertex binding
// holding a single attribute. Binding index and shader location both equal
// the number of bindings already present.
func (l VertexLayout) WithStream(format vk.Format, stride uint32) VertexLayout {
	next := uint32(len(l.Bindings))
	out := VertexLayout{
		Bindings:   make([]vk.VertexInputBindingDescription, 0, len(l.Bindings)+1),
		Attributes: make([]vk.VertexInputAttributeDescription, 0, len(l.Attributes)+1),
	}
	out.Bindings = append(out.Bindings, l.Bindings...)
	out.Attributes = append(out.Attributes, l.Attributes...)

	out.Bindings = append(out.Bindings, vk.VertexInputBindingDescription{
		Binding:   next,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	})
	out.Attributes = append(out.Attributes, vk.VertexInputAttributeDescription{
		Binding:  next,
		Location: next,
		Format:   format,
		Offset:   0,
	})
	return out
}

// ModelVertexLayout is the three-stream layout of uploaded meshes: position
// vec3, texcoord vec2 and normal vec3.
func ModelVertexLayout() VertexLayout {
	return EmptyVertexLayout().
		WithStream(vk.FormatR32g32b32Sfloat, 12).
		WithStream(vk.FormatR32g32Sfloat, 8).
		WithStream(vk.FormatR32g32b32Sfloat, 12)
}

func (l VertexLayout) CreateInfo() vk.PipelineVertexInputStateCreateInfo {
	return vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(l.Bindings)),
		PVertexBindingDescriptions:      l.Bindings,
		VertexAttributeDescriptionCount: uint32(len(l.Attributes)),
		PVertexAttributeDescriptions:    l.Attributes,
	}
}
