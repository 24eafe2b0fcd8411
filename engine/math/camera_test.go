package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	return v.Vec3().Mul(1 / v.W())
}

// near compares component-wise with an absolute tolerance, so values that
// should be zero may carry float noise.
func near(a, b mgl32.Vec3, eps float32) bool {
	for i := range a {
		if !within(a[i], b[i], eps) {
			return false
		}
	}
	return true
}

func within(a, b, eps float32) bool {
	d := a - b
	return d <= eps && d >= -eps
}

func TestPerspectiveUsesVulkanClipSpace(t *testing.T) {
	proj := Perspective(70, 16.0/9.0, 0.1, 200)

	nearPlane := project(proj, mgl32.Vec3{0, 0, -0.1})
	if !within(nearPlane.Z(), 0, 1e-5) {
		t.Fatalf("near plane depth = %f, want 0", nearPlane.Z())
	}
	far := project(proj, mgl32.Vec3{0, 0, -200})
	if !within(far.Z(), 1, 1e-4) {
		t.Fatalf("far plane depth = %f, want 1", far.Z())
	}
	// y points down in Vulkan clip space
	up := project(proj, mgl32.Vec3{0, 1, -10})
	if up.Y() >= 0 {
		t.Fatalf("point above the camera projects to y=%f, want negative", up.Y())
	}
}

func TestCameraLooksAlongYaw(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 2, 10}, -90, 0, 70, 0.1, 200)
	front := c.Front()
	if !near(front, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Fatalf("front = %v, want -Z", front)
	}
	// the origin is straight ahead, so it lands in the middle of the screen
	data := c.GPUData(1280, 720)
	p := project(data.ViewProj, mgl32.Vec3{0, 2, 0})
	if !within(p.X(), 0, 1e-5) || !within(p.Y(), 0, 1e-5) {
		t.Fatalf("projected = %v, want screen centre", p)
	}
	if !data.ViewProj.ApproxEqualThreshold(data.Proj.Mul4(data.View), 1e-6) {
		t.Fatal("viewProj != proj * view")
	}
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, 0, 0, 70, 0.1, 200)
	c.Rotate(10, 200)
	if c.Pitch != 89 {
		t.Fatalf("pitch = %f, want 89", c.Pitch)
	}
	c.Rotate(0, -500)
	if c.Pitch != -89 {
		t.Fatalf("pitch = %f, want -89", c.Pitch)
	}
	if c.Yaw != 10 {
		t.Fatalf("yaw = %f, want 10", c.Yaw)
	}
}

func TestCameraMove(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 0, 0}, -90, 0, 70, 0.1, 200)
	c.Move(2, 0, 0)
	if !near(c.Position, mgl32.Vec3{0, 0, -2}, 1e-5) {
		t.Fatalf("after forward move position = %v", c.Position)
	}
	c.Move(0, 1, 1)
	if !near(c.Position, mgl32.Vec3{1, 1, -2}, 1e-5) {
		t.Fatalf("after strafe position = %v", c.Position)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Fatal("Clamp returned a value outside the range")
	}
	if Clamp(uint32(4000), 1, 2048) != 2048 {
		t.Fatal("Clamp on uint32 failed")
	}
}
