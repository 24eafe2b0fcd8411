package renderer

import (
	"errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
	"github.com/spaghettifunk/umbra/engine/renderer/vulkan"
)

/**
 * @brief The front-end the engine talks to. It forwards to a backend and keeps
 * frame timing statistics.
 */
type Renderer struct {
	backend RendererBackend
	metrics *core.FrameMetrics
	clock   *core.Clock

	initialized bool
}

func New(backend RendererBackend) *Renderer {
	return &Renderer{
		backend: backend,
		metrics: core.NewFrameMetrics(),
		clock:   core.NewClock(),
	}
}

// NewVulkan creates a renderer backed by Vulkan presenting to surface.
func NewVulkan(surface vulkan.SurfaceProvider, config core.RendererConfig) *Renderer {
	return New(vulkan.New(surface, config))
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if r.initialized {
		return core.Errorf(core.ErrorKindInvalidState, "renderer.Initialize", "renderer already initialized")
	}
	if appWidth == 0 || appHeight == 0 {
		return core.Errorf(core.ErrorKindConfig, "renderer.Initialize", "invalid extent %dx%d", appWidth, appHeight)
	}
	if err := r.backend.Initialize(appName, appWidth, appHeight); err != nil {
		core.LogError("Renderer backend failed to initialize: %s", err.Error())
		return err
	}
	r.initialized = true
	r.clock.Start()
	return nil
}

// DrawFrame renders packet. A swapchain that is out of date is reported with
// its kind so the caller can keep going; the frame is simply dropped.
func (r *Renderer) DrawFrame(packet *metadata.RenderPacket) error {
	if !r.initialized {
		return core.Errorf(core.ErrorKindInvalidState, "renderer.DrawFrame", "renderer not initialized")
	}

	r.clock.Update()
	start := r.clock.Elapsed()
	err := r.backend.Render(packet)
	r.clock.Update()
	r.metrics.Update(r.clock.Elapsed() - start)

	if err != nil && !errors.Is(err, core.ErrSwapchainOutOfDate) {
		core.LogError("RendererDrawFrame failed: %s", err.Error())
	}
	return err
}

func (r *Renderer) UploadModel(model *metadata.ModelData) (int, int, error) {
	if !r.initialized {
		return -1, -1, core.Errorf(core.ErrorKindInvalidState, "renderer.UploadModel", "renderer not initialized")
	}
	return r.backend.UploadModel(model)
}

func (r *Renderer) Lights() *lighting.Manager {
	return r.backend.Lights()
}

func (r *Renderer) FrameCount() uint64 {
	return r.backend.FrameCount()
}

func (r *Renderer) Metrics() *core.FrameMetrics {
	return r.metrics
}

// Shutdown releases the backend. Calling it on a renderer that never
// initialized still gives the backend a chance to clean up partial state.
func (r *Renderer) Shutdown() error {
	r.initialized = false
	r.clock.Stop()
	return r.backend.Shutdown()
}
