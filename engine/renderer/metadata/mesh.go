package metadata

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

/**
 * @brief The CPU side of a single mesh, one vertex stream per attribute.
 * All streams have the same length.
 */
type MeshData struct {
	/** @brief The name of the mesh. */
	Name      string
	Positions []mgl32.Vec3
	TexCoords []mgl32.Vec2
	Normals   []mgl32.Vec3
	Indices   []uint32
	/** @brief The diffuse texture, nil when the mesh has none. Shared meshes share the pointer. */
	DiffuseTexture *TextureData
}

func (m *MeshData) VertexCount() int {
	return len(m.Positions)
}

// Validate checks that every stream matches the position stream and that
// indices stay inside it.
func (m *MeshData) Validate() error {
	n := len(m.Positions)
	if n == 0 {
		return fmt.Errorf("mesh `%s` has no vertices", m.Name)
	}
	if len(m.TexCoords) != n || len(m.Normals) != n {
		return fmt.Errorf("mesh `%s` has mismatched streams: %d positions, %d texcoords, %d normals",
			m.Name, n, len(m.TexCoords), len(m.Normals))
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh `%s` has %d indices, want a non-zero multiple of 3", m.Name, len(m.Indices))
	}
	for _, i := range m.Indices {
		if int(i) >= n {
			return fmt.Errorf("mesh `%s` index %d out of range", m.Name, i)
		}
	}
	return nil
}

type ModelData struct {
	Name   string
	Path   string
	Meshes []MeshData
}
