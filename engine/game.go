package engine

type Game struct {
	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnShutdown   Shutdown
}

// Boot runs before any subsystem exists; it may adjust the configuration.
type Boot func(ctx *Context) error

// Initialize runs once the window, renderer and world are up.
type Initialize func(ctx *Context) error
type Update func(ctx *Context, deltaTime float64) error

// Render draws the frame, usually through ctx.World.Render. Errors the frame
// loop can recover from are logged and the loop goes on.
type Render func(ctx *Context, deltaTime float64) error
type Shutdown func(ctx *Context) error
