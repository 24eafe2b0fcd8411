package math

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// vulkanClip converts an OpenGL style clip space (y up, z in [-1,1]) to the
// Vulkan one (y down, z in [0,1]).
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective builds a right-handed projection for Vulkan clip space.
func Perspective(fovYDegrees, aspect, near, far float32) mgl32.Mat4 {
	return vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(fovYDegrees), aspect, near, far))
}

// GPUCameraData is the layout of the camera uniform buffer.
type GPUCameraData struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
}

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a free-fly camera described by a position and a look direction
// built from yaw and pitch in degrees.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	FovY float32
	Near float32
	Far  float32
}

func NewCamera(position mgl32.Vec3, yaw, pitch, fovY, near, far float32) *Camera {
	return &Camera{
		Position: position,
		Yaw:      yaw,
		Pitch:    Clamp(pitch, -89, 89),
		FovY:     fovY,
		Near:     near,
		Far:      far,
	}
}

// Front is the normalized look direction.
func (c *Camera) Front() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	cp := gomath.Cos(pitch)
	return mgl32.Vec3{
		float32(gomath.Cos(yaw) * cp),
		float32(gomath.Sin(pitch)),
		float32(gomath.Sin(yaw) * cp),
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Front().Cross(worldUp).Normalize()
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front()), worldUp)
}

func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return Perspective(c.FovY, aspect, c.Near, c.Far)
}

// GPUData assembles the camera uniform for a target of the given extent.
func (c *Camera) GPUData(width, height uint32) GPUCameraData {
	view := c.View()
	proj := c.Projection(float32(width) / float32(height))
	return GPUCameraData{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
	}
}

// Move translates the camera along its own axes.
func (c *Camera) Move(forward, right, up float32) {
	c.Position = c.Position.
		Add(c.Front().Mul(forward)).
		Add(c.Right().Mul(right)).
		Add(worldUp.Mul(up))
}

// Rotate turns the camera; pitch stays inside (-90, 90) so the view never flips.
func (c *Camera) Rotate(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = Clamp(c.Pitch+pitch, -89, 89)
}
