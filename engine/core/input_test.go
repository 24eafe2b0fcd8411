package core

import "testing"

func TestInputKeyPressedOnlyOnEdge(t *testing.T) {
	s := NewInputState(nil)
	s.ProcessKey(KEY_W, true)
	if !s.KeyPressed(KEY_W) {
		t.Fatal("W should be pressed this frame")
	}
	s.Update()
	if s.KeyPressed(KEY_W) || !s.IsKeyDown(KEY_W) {
		t.Fatal("W should be held, not newly pressed")
	}
	s.ProcessKey(KEY_W, false)
	if s.IsKeyDown(KEY_W) || !s.WasKeyDown(KEY_W) {
		t.Fatal("release not tracked")
	}
}

func TestInputOutOfRangeKeysAreIgnored(t *testing.T) {
	s := NewInputState(nil)
	s.ProcessKey(KEYS_MAX_KEYS+3, true)
	if s.IsKeyDown(KEYS_MAX_KEYS + 3) {
		t.Fatal("out of range key reported down")
	}
}

func TestInputFiresKeyEventsOnChange(t *testing.T) {
	bus := NewEventBus()
	var pressed []KeyCode
	bus.Register(EVENT_CODE_KEY_PRESSED, nil, func(_ SystemEventCode, _ interface{}, _ interface{}, data EventContext) bool {
		pressed = append(pressed, data.Key)
		return true
	})

	s := NewInputState(bus)
	s.ProcessKey(KEY_ESCAPE, true)
	s.ProcessKey(KEY_ESCAPE, true)
	if len(pressed) != 1 || pressed[0] != KEY_ESCAPE {
		t.Fatalf("pressed events = %v", pressed)
	}
}

func TestMouseDelta(t *testing.T) {
	s := NewInputState(nil)
	s.ProcessMouseMove(10, 20)
	s.Update()
	s.ProcessMouseMove(15, 18)
	dx, dy := s.MouseDelta()
	if dx != 5 || dy != -2 {
		t.Fatalf("delta = %v, %v", dx, dy)
	}
}
