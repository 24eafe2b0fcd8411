package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type fakeBackend struct {
	initErr   error
	renderErr error
	frames    uint64
	uploads   int
	shutdowns int
}

func (f *fakeBackend) Initialize(string, uint32, uint32) error { return f.initErr }

func (f *fakeBackend) Shutdown() error {
	f.shutdowns++
	return nil
}

func (f *fakeBackend) Render(*metadata.RenderPacket) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	f.frames++
	return nil
}

func (f *fakeBackend) UploadModel(*metadata.ModelData) (int, int, error) {
	f.uploads++
	return f.uploads - 1, f.uploads - 1, nil
}

func (f *fakeBackend) Lights() *lighting.Manager { return nil }

func (f *fakeBackend) FrameCount() uint64 { return f.frames }

func TestDrawFrameBeforeInitialize(t *testing.T) {
	r := New(&fakeBackend{})
	err := r.DrawFrame(&metadata.RenderPacket{})
	if !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("got %v, want invalid state", err)
	}
	if _, _, err := r.UploadModel(&metadata.ModelData{}); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("upload got %v", err)
	}
}

func TestInitializeRejectsEmptyExtent(t *testing.T) {
	r := New(&fakeBackend{})
	if err := r.Initialize("test", 0, 720); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("got %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	r := New(&fakeBackend{})
	if err := r.Initialize("test", 1280, 720); err != nil {
		t.Fatal(err)
	}
	if err := r.Initialize("test", 1280, 720); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("second initialize got %v", err)
	}
}

func TestDrawFrameForwardsToBackend(t *testing.T) {
	backend := &fakeBackend{}
	r := New(backend)
	if err := r.Initialize("test", 1280, 720); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := r.DrawFrame(&metadata.RenderPacket{}); err != nil {
			t.Fatal(err)
		}
	}
	if r.FrameCount() != 4 {
		t.Errorf("FrameCount() = %d", r.FrameCount())
	}

	backend.renderErr = core.NewError(core.ErrorKindSwapchainOutOfDate, "present", nil)
	if err := r.DrawFrame(&metadata.RenderPacket{}); !core.IsRecoverable(err) {
		t.Errorf("out of date should be recoverable, got %v", err)
	}

	id, material, err := r.UploadModel(&metadata.ModelData{Name: "cube"})
	if err != nil || id != 0 || material != 0 {
		t.Errorf("UploadModel = %d, %d, %v", id, material, err)
	}

	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if backend.shutdowns != 1 {
		t.Errorf("backend shut down %d times", backend.shutdowns)
	}
}

func TestFailedInitializeLeavesRendererUnusable(t *testing.T) {
	r := New(&fakeBackend{initErr: core.Errorf(core.ErrorKindDeviceLost, "init", "no device")})
	if err := r.Initialize("test", 1280, 720); !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("got %v", err)
	}
	if err := r.DrawFrame(&metadata.RenderPacket{}); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("draw after failed init got %v", err)
	}
}
