package engine

import (
	"github.com/spaghettifunk/umbra/engine/assets"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
	"github.com/spaghettifunk/umbra/engine/systems"
	"github.com/spaghettifunk/umbra/engine/world"
)

// Window is the platform layer the engine drives.
type Window interface {
	Startup(applicationName string, x, y, width, height uint32) error
	// PumpMessages returns false once the window should close.
	PumpMessages() bool
	Shutdown() error
}

// FrameRenderer is the renderer front-end as seen by the engine.
type FrameRenderer interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	DrawFrame(packet *metadata.RenderPacket) error
	UploadModel(model *metadata.ModelData) (int, int, error)
	Lights() *lighting.Manager
	Shutdown() error
}

// Context is what the game sees of the running engine.
type Context struct {
	Config   *core.Config
	Input    *core.InputState
	Events   *core.EventBus
	Renderer FrameRenderer
	World    *world.World
	// Jobs runs blocking work off the main goroutine; callbacks come back
	// on it once a frame.
	Jobs *systems.JobSystem
}

func (c *Context) loadModel(path string) (*metadata.ModelData, error) {
	return assets.LoadModel(path, uint32(c.Config.Renderer.MaxTextureSize))
}
