package engine

import (
	"errors"
	"runtime"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/platform"
	"github.com/spaghettifunk/umbra/engine/renderer"
	"github.com/spaghettifunk/umbra/engine/systems"
	"github.com/spaghettifunk/umbra/engine/world"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything
	EngineStageShutdown
)

var stageNames = [...]string{
	"uninitialized", "booting", "boot complete", "initializing",
	"initialized", "running", "shutting down", "shut down",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

const jobQueueSize = 64

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool

	window   Window
	renderer FrameRenderer
	ctx      *Context

	clock    *core.Clock
	lastTime float64
}

// New creates an engine with a glfw window and the Vulkan renderer.
func New(g *Game, config *core.Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	events := core.NewEventBus()
	input := core.NewInputState(events)
	p := platform.New(input, events)
	return newEngine(g, config, p, renderer.NewVulkan(p, config.Renderer), input, events), nil
}

func newEngine(g *Game, config *core.Config, window Window, r FrameRenderer, input *core.InputState, events *core.EventBus) *Engine {
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		window:       window,
		renderer:     r,
		clock:        core.NewClock(),
		ctx: &Context{
			Config:   config,
			Input:    input,
			Events:   events,
			Renderer: r,
		},
	}
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return core.Errorf(core.ErrorKindInvalidState, "engine.Initialize", "engine is %s", e.currentStage)
	}

	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(e.ctx); err != nil {
			core.LogError("game boot failed: %s", err.Error())
			return err
		}
	}
	if err := core.SetLogLevel(e.ctx.Config.Logging.Level); err != nil {
		core.LogWarn(err.Error())
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	e.ctx.Events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.ctx.Events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)

	app := e.ctx.Config.Application
	if err := e.window.Startup(app.Name, app.PosX, app.PosY, app.Width, app.Height); err != nil {
		return err
	}
	if err := e.renderer.Initialize(app.Name, app.Width, app.Height); err != nil {
		return err
	}
	e.ctx.World = world.New(e.renderer, e.ctx.loadModel, app.Width, app.Height)

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), jobQueueSize)
	if err != nil {
		return err
	}
	e.ctx.Jobs = jobs

	if err := e.gameInstance.FnInitialize(e.ctx); err != nil {
		core.LogError("game initialization failed: %s", err.Error())
		return err
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized.")
	return nil
}

// Run drives the frame loop until the window closes, a quit event arrives or
// a frame fails with an error the loop cannot recover from. Shutdown always
// runs before Run returns; the returned error is the one that stopped the
// loop.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.Errorf(core.ErrorKindInvalidState, "engine.Run", "engine is %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.isRunning {
		if !e.window.PumpMessages() {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.gameInstance.FnUpdate(e.ctx, delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err.Error())
			runErr = err
			break
		}

		if err := e.gameInstance.FnRender(e.ctx, delta); err != nil {
			if core.IsRecoverable(err) {
				core.LogWarn("frame dropped: %s", err.Error())
			} else {
				core.LogError("Game render failed, shutting down: %s", err.Error())
				runErr = err
				break
			}
		}

		e.ctx.Jobs.Update()

		// Input is rolled over last so this frame's reads saw this frame's state.
		e.ctx.Input.Update()
		e.lastTime = currentTime
	}

	e.isRunning = false
	return errors.Join(runErr, e.Shutdown())
}

// Shutdown releases the game, the renderer and the window in this order.
// Only the first call does anything.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown(e.ctx))
	}
	// pending job callbacks may still upload to the renderer
	if e.ctx.Jobs != nil {
		errs = append(errs, e.ctx.Jobs.Shutdown())
	}
	errs = append(errs, e.renderer.Shutdown(), e.window.Shutdown())
	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return errors.Join(errs...)
}

// Quit asks the frame loop to stop after the current frame.
func (e *Engine) Quit() {
	e.ctx.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Key == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.ctx.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}
