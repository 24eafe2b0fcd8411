package engine

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type fakeWindow struct {
	frames    int // PumpMessages returns false after this many frames
	pumped    int
	shutdowns int
}

func (w *fakeWindow) Startup(string, uint32, uint32, uint32, uint32) error { return nil }

func (w *fakeWindow) PumpMessages() bool {
	w.pumped++
	return w.pumped <= w.frames
}

func (w *fakeWindow) Shutdown() error {
	w.shutdowns++
	return nil
}

type fakeRenderer struct {
	drawErrs  []error
	draws     int
	shutdowns int
}

func (r *fakeRenderer) Initialize(string, uint32, uint32) error { return nil }

func (r *fakeRenderer) DrawFrame(*metadata.RenderPacket) error {
	r.draws++
	if len(r.drawErrs) > 0 {
		err := r.drawErrs[0]
		r.drawErrs = r.drawErrs[1:]
		return err
	}
	return nil
}

func (r *fakeRenderer) UploadModel(*metadata.ModelData) (int, int, error) { return 0, 0, nil }

func (r *fakeRenderer) Lights() *lighting.Manager { return nil }

func (r *fakeRenderer) Shutdown() error {
	r.shutdowns++
	return nil
}

func testGame() *Game {
	return &Game{
		FnInitialize: func(*Context) error { return nil },
		FnUpdate:     func(*Context, float64) error { return nil },
		FnRender: func(ctx *Context, _ float64) error {
			return ctx.Renderer.DrawFrame(&metadata.RenderPacket{})
		},
	}
}

func newTestEngine(g *Game, w *fakeWindow, r *fakeRenderer) *Engine {
	events := core.NewEventBus()
	return newEngine(g, core.DefaultConfig(), w, r, core.NewInputState(events), events)
}

func TestEngineStages(t *testing.T) {
	w, r := &fakeWindow{frames: 3}, &fakeRenderer{}
	e := newTestEngine(testGame(), w, r)
	if err := e.Run(); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("run before initialize got %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.Stage() != EngineStageInitialized || e.ctx.World == nil {
		t.Fatalf("stage %s after initialize", e.Stage())
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if r.draws != 3 {
		t.Errorf("drew %d frames, want 3", r.draws)
	}
	if e.Stage() != EngineStageShutdown || r.shutdowns != 1 || w.shutdowns != 1 {
		t.Errorf("stage %s, renderer shutdowns %d, window shutdowns %d", e.Stage(), r.shutdowns, w.shutdowns)
	}
	if err := e.Shutdown(); err != nil || r.shutdowns != 1 {
		t.Error("second shutdown was not a no-op")
	}
}

func TestOutOfDateSwapchainKeepsRunning(t *testing.T) {
	w := &fakeWindow{frames: 4}
	r := &fakeRenderer{drawErrs: []error{
		nil,
		core.NewError(core.ErrorKindSwapchainOutOfDate, "acquire", nil),
	}}
	e := newTestEngine(testGame(), w, r)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("recoverable error stopped the loop: %v", err)
	}
	if r.draws != 4 {
		t.Errorf("drew %d frames, want 4", r.draws)
	}
}

func TestFatalRenderErrorStopsAndShutsDown(t *testing.T) {
	w := &fakeWindow{frames: 10}
	r := &fakeRenderer{drawErrs: []error{
		nil,
		core.NewError(core.ErrorKindDeviceLost, "submit", nil),
	}}
	e := newTestEngine(testGame(), w, r)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	err := e.Run()
	if !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("got %v, want device lost", err)
	}
	if r.draws != 2 || r.shutdowns != 1 {
		t.Errorf("draws %d, shutdowns %d", r.draws, r.shutdowns)
	}
}

func TestEscapeQuits(t *testing.T) {
	w, r := &fakeWindow{frames: 100}, &fakeRenderer{}
	g := testGame()
	g.FnUpdate = func(ctx *Context, _ float64) error {
		if r.draws == 2 {
			ctx.Input.ProcessKey(core.KEY_ESCAPE, true)
		}
		return nil
	}
	e := newTestEngine(g, w, r)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if r.draws != 3 {
		t.Errorf("drew %d frames after escape, want 3", r.draws)
	}
}
