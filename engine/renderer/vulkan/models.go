package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

/**
 * @brief The device-local buffers of one mesh. Each vertex attribute lives in
 * its own buffer, bound at the binding of the same index.
 */
type MeshResource struct {
	Name       string
	Positions  *Buffer
	TexCoords  *Buffer
	Normals    *Buffer
	Indices    *Buffer
	IndexCount uint32
}

func (m *MeshResource) vertexBuffers() []vk.Buffer {
	return []vk.Buffer{m.Positions.Handle, m.TexCoords.Handle, m.Normals.Handle}
}

type ModelResource struct {
	Name   string
	Meshes []*MeshResource
}

// uploadMesh copies the streams of mesh into device-local buffers and records
// them in the ledger.
func uploadMesh(context *VulkanContext, transfer *TransferChannel, mesh *metadata.MeshData) (*MeshResource, error) {
	if err := mesh.Validate(); err != nil {
		return nil, core.NewError(core.ErrorKindInvalidState, "vulkan.uploadMesh", err)
	}

	upload := func(data []byte, usage vk.BufferUsageFlags, stream string) (*Buffer, error) {
		buffer, err := transfer.UploadBuffer(data, usage, fmt.Sprintf("mesh %s %s", mesh.Name, stream))
		if err != nil {
			return nil, err
		}
		buffer.Track(context.Ledger)
		return buffer, nil
	}

	vertexUsage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	resource := &MeshResource{
		Name:       mesh.Name,
		IndexCount: uint32(len(mesh.Indices)),
	}
	var err error
	if resource.Positions, err = upload(core.BytesOf(mesh.Positions), vertexUsage, "positions"); err != nil {
		return nil, err
	}
	if resource.TexCoords, err = upload(core.BytesOf(mesh.TexCoords), vertexUsage, "texcoords"); err != nil {
		return nil, err
	}
	if resource.Normals, err = upload(core.BytesOf(mesh.Normals), vertexUsage, "normals"); err != nil {
		return nil, err
	}
	if resource.Indices, err = upload(core.BytesOf(mesh.Indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), "indices"); err != nil {
		return nil, err
	}
	return resource, nil
}

// ResourceStore holds everything uploaded for drawing. Buffer and material
// group ids handed out by the renderer are indices into it.
type ResourceStore struct {
	Models    []*ModelResource
	Materials []*MaterialGroup
	Textures  *TextureCache
}

func (rs *ResourceStore) MeshCount() int {
	count := 0
	for _, m := range rs.Models {
		count += len(m.Meshes)
	}
	return count
}

// TextureCache keeps one uploaded image per texture name.
type TextureCache struct {
	images      map[string]*VulkanImage
	placeholder *VulkanImage
}

func NewTextureCache() *TextureCache {
	return &TextureCache{images: make(map[string]*VulkanImage)}
}

// Get returns the image for texture, uploading it on first use. A nil texture
// or a failed upload yields the placeholder; the failure is logged.
func (tc *TextureCache) Get(context *VulkanContext, channel *TransferChannel, texture *metadata.TextureData) *VulkanImage {
	if texture == nil {
		return tc.placeholder
	}
	if image, ok := tc.images[texture.Name]; ok {
		return image
	}
	image, err := channel.UploadImage(texture, vk.FormatR8g8b8a8Srgb)
	if err != nil {
		core.LogError("texture %s: %s, using the placeholder", texture.Name, err.Error())
		tc.images[texture.Name] = tc.placeholder
		return tc.placeholder
	}
	image.Track(context.Ledger)
	tc.images[texture.Name] = image
	return image
}

// SetPlaceholder uploads the texture used for meshes without one.
func (tc *TextureCache) SetPlaceholder(context *VulkanContext, channel *TransferChannel, texture *metadata.TextureData) error {
	image, err := channel.UploadImage(texture, vk.FormatR8g8b8a8Srgb)
	if err != nil {
		return err
	}
	image.Track(context.Ledger)
	tc.placeholder = image
	tc.images[texture.Name] = image
	return nil
}

func (tc *TextureCache) Len() int {
	return len(tc.images)
}
