package assets

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/spaghettifunk/umbra/engine/core"
)

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.glb"), 0)
	if core.KindOf(err) != core.ErrorKindResourceCreation {
		t.Fatalf("err = %v, want a resource creation failure", err)
	}
}

func vecWithin(a, b mgl32.Vec3, eps float32) bool {
	d := a.Sub(b)
	return d.Dot(d) <= eps*eps
}

func TestNodeMatrix(t *testing.T) {
	n := &gltf.Node{
		Translation: [3]float64{1, 2, 3},
		Rotation:    [4]float64{0, 0, 0, 1},
		Scale:       [3]float64{2, 2, 2},
	}
	got := mgl32.TransformCoordinate(mgl32.Vec3{1, 1, 1}, nodeMatrix(n))
	if !vecWithin(got, mgl32.Vec3{3, 4, 5}, 1e-6) {
		t.Fatalf("TRS node maps (1,1,1) to %v", got)
	}

	m := &gltf.Node{Matrix: [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 0, 0, 1}}
	got = mgl32.TransformCoordinate(mgl32.Vec3{}, nodeMatrix(m))
	if !vecWithin(got, mgl32.Vec3{5, 0, 0}, 1e-6) {
		t.Fatalf("matrix node maps origin to %v", got)
	}
}
