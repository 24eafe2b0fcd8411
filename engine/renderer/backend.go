package renderer

import (
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// RendererBackend is a graphics API implementation of the deferred renderer.
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	// Render records, submits and presents one frame.
	Render(packet *metadata.RenderPacket) error
	// UploadModel returns the buffer group and material group ids of model.
	UploadModel(model *metadata.ModelData) (int, int, error)
	Lights() *lighting.Manager
	FrameCount() uint64
}

type RendererType uint8

const (
	Vulkan RendererType = iota
)
