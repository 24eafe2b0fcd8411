package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/umbra/engine/math"
)

/** @brief A renderable resolved to the GPU resources it draws with. */
type RenderObject struct {
	/** @brief Index into the renderer's uploaded model list. */
	BufferGroup int
	/** @brief Index into the renderer's material group list. */
	MaterialGroup int
	Transform     mgl32.Mat4
}

/**
 * @brief Everything the backend needs to draw one frame.
 */
type RenderPacket struct {
	DeltaTime float64
	Camera    math.GPUCameraData
	Objects   []RenderObject
}
