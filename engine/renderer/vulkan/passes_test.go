package vulkan

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

func twoMeshModel() *ModelResource {
	return &ModelResource{
		Name:   "crate",
		Meshes: []*MeshResource{{Name: "lid", IndexCount: 6}, {Name: "body", IndexCount: 30}},
	}
}

func TestGeometryDrawsOnePerMesh(t *testing.T) {
	sets := make([]vk.DescriptorSet, 2)
	pass := &GeometryPass{Resources: &ResourceStore{
		Models:    []*ModelResource{twoMeshModel()},
		Materials: []*MaterialGroup{{Name: "crate", Sets: sets}},
	}}
	transform := mgl32.Translate3D(1, 2, 3)
	packet := &metadata.RenderPacket{Objects: []metadata.RenderObject{
		{BufferGroup: 0, MaterialGroup: 0, Transform: transform},
		{BufferGroup: 0, MaterialGroup: 0, Transform: mgl32.Ident4()},
	}}

	draws, err := pass.draws(packet)
	if err != nil {
		t.Fatal(err)
	}
	if len(draws) != 4 {
		t.Fatalf("got %d draws, want 4", len(draws))
	}
	if draws[1].mesh.Name != "body" || draws[1].transform != transform {
		t.Errorf("second draw = %+v", draws[1])
	}
}

func TestGeometryDrawsRejectBadPackets(t *testing.T) {
	tests := []struct {
		name     string
		sets     int
		buffer   int
		material int
	}{
		{"missing material set", 1, 0, 0},
		{"unknown buffer group", 2, 1, 0},
		{"unknown material group", 2, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := &GeometryPass{Resources: &ResourceStore{
				Models:    []*ModelResource{twoMeshModel()},
				Materials: []*MaterialGroup{{Name: "crate", Sets: make([]vk.DescriptorSet, tt.sets)}},
			}}
			packet := &metadata.RenderPacket{Objects: []metadata.RenderObject{
				{BufferGroup: tt.buffer, MaterialGroup: tt.material},
			}}
			if _, err := pass.draws(packet); !errors.Is(err, core.ErrInvalidState) {
				t.Fatalf("got %v, want an invalid state error", err)
			}
		})
	}
}
