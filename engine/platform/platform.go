package platform

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

var keyMap = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape:      core.KEY_ESCAPE,
	glfw.KeySpace:       core.KEY_SPACE,
	glfw.KeyLeftShift:   core.KEY_LEFT_SHIFT,
	glfw.KeyLeftControl: core.KEY_LEFT_CONTROL,
	glfw.KeyUp:          core.KEY_UP,
	glfw.KeyDown:        core.KEY_DOWN,
	glfw.KeyLeft:        core.KEY_LEFT,
	glfw.KeyRight:       core.KEY_RIGHT,
	glfw.KeyW:           core.KEY_W,
	glfw.KeyA:           core.KEY_A,
	glfw.KeyS:           core.KEY_S,
	glfw.KeyD:           core.KEY_D,
	glfw.KeyQ:           core.KEY_Q,
	glfw.KeyE:           core.KEY_E,
	glfw.KeyR:           core.KEY_R,
	glfw.KeyL:           core.KEY_L,
}

var buttonMap = map[glfw.MouseButton]core.Button{
	glfw.MouseButtonLeft:   core.BUTTON_LEFT,
	glfw.MouseButtonRight:  core.BUTTON_RIGHT,
	glfw.MouseButtonMiddle: core.BUTTON_MIDDLE,
}

/**
 * @brief The application window. It feeds input into an InputState and
 * creates the Vulkan surface the renderer presents to. The window has a fixed
 * size.
 */
type Platform struct {
	Window *glfw.Window
	input  *core.InputState
	events *core.EventBus
}

func New(input *core.InputState, events *core.EventBus) *Platform {
	return &Platform{
		input:  input,
		events: events,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.Errorf(core.ErrorKindResourceCreation, "platform.Startup", "glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) InstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := keyMap[key]
	if !ok || action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if b, ok := buttonMap[button]; ok {
		p.input.ProcessButton(b, action == glfw.Press)
	}
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.input.ProcessMouseMove(xpos, ypos)
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
}
