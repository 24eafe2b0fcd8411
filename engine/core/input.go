package core

import "sync"

type Button uint8

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// KeyCode is a platform independent key. The platform layer maps its own
// codes onto these.
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = iota
	KEY_ESCAPE
	KEY_SPACE
	KEY_LEFT_SHIFT
	KEY_LEFT_CONTROL
	KEY_UP
	KEY_DOWN
	KEY_LEFT
	KEY_RIGHT
	KEY_W
	KEY_A
	KEY_S
	KEY_D
	KEY_Q
	KEY_E
	KEY_R
	KEY_L
	KEYS_MAX_KEYS
)

type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

/**
 * @brief Current and previous keyboard and mouse state. The platform layer
 * writes it from window callbacks; the game reads it once per frame after
 * Update has rolled the current state into the previous one.
 */
type InputState struct {
	mu               sync.RWMutex
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
	events           *EventBus
}

// NewInputState creates an empty input state. Key and button changes are
// fired on events when it is not nil.
func NewInputState(events *EventBus) *InputState {
	return &InputState{events: events}
}

// Update copies the current state to the previous state. Call it once per
// frame, after the game has read the input.
func (s *InputState) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyboardPrevious = s.keyboardCurrent
	s.mousePrevious = s.mouseCurrent
}

func (s *InputState) IsKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyboardCurrent.Keys[key]
}

func (s *InputState) WasKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyboardPrevious.Keys[key]
}

// KeyPressed reports a key that went down since the last Update.
func (s *InputState) KeyPressed(key KeyCode) bool {
	return s.IsKeyDown(key) && !s.WasKeyDown(key)
}

func (s *InputState) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	s.mu.Lock()
	changed := s.keyboardCurrent.Keys[key] != pressed
	s.keyboardCurrent.Keys[key] = pressed
	s.mu.Unlock()

	if changed && s.events != nil {
		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		s.events.Fire(code, s, EventContext{Key: key})
	}
}

func (s *InputState) IsButtonDown(button Button) bool {
	if button >= BUTTON_MAX_BUTTONS {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mouseCurrent.Buttons[button]
}

func (s *InputState) ProcessButton(button Button, pressed bool) {
	if button >= BUTTON_MAX_BUTTONS {
		return
	}
	s.mu.Lock()
	changed := s.mouseCurrent.Buttons[button] != pressed
	s.mouseCurrent.Buttons[button] = pressed
	s.mu.Unlock()

	if changed && s.events != nil {
		code := EVENT_CODE_BUTTON_RELEASED
		if pressed {
			code = EVENT_CODE_BUTTON_PRESSED
		}
		s.events.Fire(code, s, EventContext{Button: button})
	}
}

func (s *InputState) ProcessMouseMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mouseCurrent.X = x
	s.mouseCurrent.Y = y
}

// MouseDelta is the cursor movement since the last Update.
func (s *InputState) MouseDelta() (float64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mouseCurrent.X - s.mousePrevious.X, s.mouseCurrent.Y - s.mousePrevious.Y
}
