package assets

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

/**
 * @brief Loads a .gltf or .glb file into per-mesh vertex streams. Node
 * transforms are baked into the vertices, so the result is in model space.
 * A diffuse texture that fails to load is replaced by the placeholder.
 */
func LoadModel(path string, maxTextureSize uint32) (*metadata.ModelData, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, core.NewError(core.ErrorKindResourceCreation, "assets.LoadModel", fmt.Errorf("%s: %w", path, err))
	}

	l := &gltfLoader{
		doc:      doc,
		path:     path,
		dir:      filepath.Dir(path),
		maxSize:  maxTextureSize,
		textures: make(map[int]*metadata.TextureData),
	}
	model := &metadata.ModelData{
		Name: filepath.Base(path),
		Path: path,
	}

	for _, root := range l.roots() {
		if err := l.processNode(model, root, mgl32.Ident4()); err != nil {
			return nil, core.NewError(core.ErrorKindResourceCreation, "assets.LoadModel", fmt.Errorf("%s: %w", path, err))
		}
	}
	if len(model.Meshes) == 0 {
		return nil, core.Errorf(core.ErrorKindResourceCreation, "assets.LoadModel", "%s: no meshes", path)
	}
	core.LogInfo("loaded model `%s` with %d meshes", path, len(model.Meshes))
	return model, nil
}

type gltfLoader struct {
	doc      *gltf.Document
	path     string
	dir      string
	maxSize  uint32
	textures map[int]*metadata.TextureData
}

func (l *gltfLoader) roots() []int {
	if l.doc.Scene != nil && *l.doc.Scene < len(l.doc.Scenes) {
		return l.doc.Scenes[*l.doc.Scene].Nodes
	}
	// no default scene: every node without a parent is a root
	hasParent := make([]bool, len(l.doc.Nodes))
	for _, n := range l.doc.Nodes {
		for _, c := range n.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var out []int
	for i := range l.doc.Nodes {
		if !hasParent[i] {
			out = append(out, i)
		}
	}
	return out
}

func (l *gltfLoader) processNode(model *metadata.ModelData, idx int, parent mgl32.Mat4) error {
	if idx >= len(l.doc.Nodes) {
		return fmt.Errorf("node %d out of range", idx)
	}
	node := l.doc.Nodes[idx]
	world := parent.Mul4(nodeMatrix(node))

	if node.Mesh != nil && *node.Mesh < len(l.doc.Meshes) {
		mesh := l.doc.Meshes[*node.Mesh]
		for pi, prim := range mesh.Primitives {
			m, err := l.processPrimitive(mesh.Name, pi, prim, world)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", *node.Mesh, pi, err)
			}
			model.Meshes = append(model.Meshes, *m)
		}
	}
	for _, c := range node.Children {
		if err := l.processNode(model, c, world); err != nil {
			return err
		}
	}
	return nil
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func nodeMatrix(n *gltf.Node) mgl32.Mat4 {
	if n.Matrix != identityMatrix && n.Matrix != [16]float64{} {
		var m mgl32.Mat4
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

func (l *gltfLoader) processPrimitive(meshName string, primIdx int, prim *gltf.Primitive, world mgl32.Mat4) (*metadata.MeshData, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = modeler.ReadNormal(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = modeler.ReadTextureCoord(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("texcoords: %w", err)
		}
	}

	normalMatrix := world.Mat3().Inv().Transpose()
	mesh := &metadata.MeshData{
		Name:      fmt.Sprintf("%s_p%d", meshName, primIdx),
		Positions: make([]mgl32.Vec3, len(positions)),
		TexCoords: make([]mgl32.Vec2, len(positions)),
		Normals:   make([]mgl32.Vec3, len(positions)),
	}
	for i, p := range positions {
		mesh.Positions[i] = mgl32.TransformCoordinate(mgl32.Vec3(p), world)
		n := mgl32.Vec3{0, 1, 0}
		if i < len(normals) {
			n = normalMatrix.Mul3x1(mgl32.Vec3(normals[i])).Normalize()
		}
		mesh.Normals[i] = n
		if i < len(uvs) {
			mesh.TexCoords[i] = mgl32.Vec2(uvs[i])
		}
	}

	if prim.Indices != nil {
		if mesh.Indices, err = modeler.ReadIndices(l.doc, l.doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		mesh.Indices = make([]uint32, len(positions))
		for i := range mesh.Indices {
			mesh.Indices[i] = uint32(i)
		}
	}

	if prim.Material != nil && *prim.Material < len(l.doc.Materials) {
		mesh.DiffuseTexture = l.diffuseTexture(l.doc.Materials[*prim.Material])
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// diffuseTexture resolves the base colour texture of a material, decoding
// each glTF texture once.
func (l *gltfLoader) diffuseTexture(mat *gltf.Material) *metadata.TextureData {
	pbr := mat.PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorTexture == nil {
		return nil
	}
	idx := pbr.BaseColorTexture.Index
	if tex, ok := l.textures[idx]; ok {
		return tex
	}

	tex, err := l.loadTexture(idx)
	if err != nil {
		core.LogError("%s, using placeholder texture", core.NewError(core.ErrorKindTextureLoadFailed, "assets.LoadModel", err))
		tex = PlaceholderTexture()
	}
	l.textures[idx] = tex
	return tex
}

func (l *gltfLoader) loadTexture(idx int) (*metadata.TextureData, error) {
	if idx >= len(l.doc.Textures) || l.doc.Textures[idx].Source == nil {
		return nil, fmt.Errorf("texture %d has no image", idx)
	}
	src := *l.doc.Textures[idx].Source
	img := l.doc.Images[src]

	var raw []byte
	var err error
	switch {
	case img.BufferView != nil:
		raw, err = modeler.ReadBufferView(l.doc, l.doc.BufferViews[*img.BufferView])
	case img.IsEmbeddedResource():
		raw, err = img.MarshalData()
	case img.URI != "":
		return LoadTexture(filepath.Join(l.dir, img.URI), l.maxSize)
	default:
		return nil, fmt.Errorf("image %d has no data", src)
	}
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", src, err)
	}

	tex, err := DecodeTexture(bytes.NewReader(raw), l.maxSize)
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", src, err)
	}
	tex.Name = fmt.Sprintf("%s#image%d", l.path, src)
	return tex, nil
}
