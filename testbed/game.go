package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/umbra/engine"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/lighting"
	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/world"
)

const (
	lookSpeed    = 60.0 // degrees per second with the arrow keys
	mouseLookDeg = 0.15 // degrees per pixel while the right button is held
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera *math.Camera
	speed  float32
	// lights added at runtime with the L key
	extraLights int
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(ctx *engine.Context) error {
	core.LogInfo("initializing testbed...")
	cfg := ctx.Config
	state := g.state()

	c := cfg.Camera
	state.camera = math.NewCamera(mgl32.Vec3(c.Position), c.Yaw, c.Pitch, c.FovY, c.Near, c.Far)
	state.speed = c.Speed

	addLights(ctx.Renderer.Lights(), cfg.Lights)

	paths := make([]string, 0, len(cfg.Entities))
	for _, e := range cfg.Entities {
		if e.Renderable {
			paths = append(paths, e.Model)
		}
	}
	if err := ctx.World.Preload(ctx.Jobs, paths); err != nil {
		core.LogError("preloading models: %s", err.Error())
		return err
	}

	for _, e := range cfg.Entities {
		if _, err := ctx.World.AddEntity(world.EntityInfo{
			Name:       e.Name,
			Model:      e.Model,
			Position:   mgl32.Vec3(e.Position),
			Renderable: e.Renderable,
		}); err != nil {
			core.LogError("entity %s: %s", e.Name, err.Error())
			return err
		}
	}
	core.LogInfo("testbed ready: %d entities, %d point and %d directional lights",
		ctx.World.Len(), ctx.Renderer.Lights().Counts().NumberPointLights, ctx.Renderer.Lights().Counts().NumberDirectionalLights)
	return nil
}

// addLights registers the configured lights, or a sun and a warm fill light
// when the configuration has none.
func addLights(lights *lighting.Manager, cfg core.LightsConfig) {
	if len(cfg.Point) == 0 && len(cfg.Directional) == 0 {
		lights.AddDirectionalLight(mgl32.Vec4{-0.3, -1, -0.2, 0}, mgl32.Vec4{1, 0.95, 0.9, 1})
		lights.AddPointLight(mgl32.Vec4{0, 3, 0, 1}, mgl32.Vec4{1, 0.6, 0.3, 1},
			lighting.AttenuationFactors{Constant: 1, Linear: 0.09, Quadratic: 0.032})
		return
	}
	for _, p := range cfg.Point {
		lights.AddPointLight(mgl32.Vec4(p.Position), mgl32.Vec4(p.Colour), lighting.AttenuationFactors{
			Constant:  p.Attenuation[0],
			Linear:    p.Attenuation[1],
			Quadratic: p.Attenuation[2],
		})
	}
	for _, d := range cfg.Directional {
		lights.AddDirectionalLight(mgl32.Vec4(d.Direction), mgl32.Vec4(d.Colour))
	}
}

func (g *TestGame) Update(ctx *engine.Context, deltaTime float64) error {
	state := g.state()
	in := ctx.Input
	dt := float32(deltaTime)

	var forward, right, up float32
	if in.IsKeyDown(core.KEY_W) {
		forward++
	}
	if in.IsKeyDown(core.KEY_S) {
		forward--
	}
	if in.IsKeyDown(core.KEY_D) {
		right++
	}
	if in.IsKeyDown(core.KEY_A) {
		right--
	}
	if in.IsKeyDown(core.KEY_E) || in.IsKeyDown(core.KEY_SPACE) {
		up++
	}
	if in.IsKeyDown(core.KEY_Q) || in.IsKeyDown(core.KEY_LEFT_CONTROL) {
		up--
	}
	speed := state.speed
	if in.IsKeyDown(core.KEY_LEFT_SHIFT) {
		speed *= 3
	}
	state.camera.Move(forward*speed*dt, right*speed*dt, up*speed*dt)

	var yaw, pitch float32
	if in.IsKeyDown(core.KEY_LEFT) {
		yaw -= lookSpeed * dt
	}
	if in.IsKeyDown(core.KEY_RIGHT) {
		yaw += lookSpeed * dt
	}
	if in.IsKeyDown(core.KEY_UP) {
		pitch += lookSpeed * dt
	}
	if in.IsKeyDown(core.KEY_DOWN) {
		pitch -= lookSpeed * dt
	}
	if in.IsButtonDown(core.BUTTON_RIGHT) {
		dx, dy := in.MouseDelta()
		yaw += float32(dx) * mouseLookDeg
		pitch -= float32(dy) * mouseLookDeg
	}
	state.camera.Rotate(yaw, pitch)

	if in.KeyPressed(core.KEY_L) {
		// drop a light where the camera is
		p := state.camera.Position
		ctx.Renderer.Lights().AddPointLight(mgl32.Vec4{p.X(), p.Y(), p.Z(), 1}, mgl32.Vec4{0.4, 0.7, 1, 1},
			lighting.AttenuationFactors{Constant: 1, Linear: 0.14, Quadratic: 0.07})
		state.extraLights++
		core.LogInfo("point light added, %d point lights", ctx.Renderer.Lights().Counts().NumberPointLights)
	}
	if in.KeyPressed(core.KEY_R) {
		c := ctx.Config.Camera
		state.camera = math.NewCamera(mgl32.Vec3(c.Position), c.Yaw, c.Pitch, c.FovY, c.Near, c.Far)
	}
	return nil
}

func (g *TestGame) Render(ctx *engine.Context, deltaTime float64) error {
	return ctx.World.Render(g.state().camera, deltaTime)
}

func (g *TestGame) Shutdown(ctx *engine.Context) error {
	core.LogInfo("testbed shutting down, %d lights were added at runtime", g.state().extraLights)
	return nil
}
