package core

import "testing"

func TestEventBusStopsAtHandler(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first := func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls = append(calls, "first")
		return true
	}
	second := func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls = append(calls, "second")
		return false
	}

	bus.Register(EVENT_CODE_APPLICATION_QUIT, "a", first)
	bus.Register(EVENT_CODE_APPLICATION_QUIT, "b", second)
	if !bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Fatal("event not handled")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestEventBusRejectsDuplicates(t *testing.T) {
	bus := NewEventBus()
	fn := func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }
	if !bus.Register(EVENT_CODE_KEY_PRESSED, "l", fn) {
		t.Fatal("first registration failed")
	}
	if bus.Register(EVENT_CODE_KEY_PRESSED, "l", fn) {
		t.Fatal("duplicate registration accepted")
	}
	if !bus.Unregister(EVENT_CODE_KEY_PRESSED, "l", fn) {
		t.Fatal("unregister failed")
	}
	if bus.Unregister(EVENT_CODE_KEY_PRESSED, "l", fn) {
		t.Fatal("unregistered twice")
	}
	if bus.Fire(EVENT_CODE_KEY_PRESSED, nil, EventContext{}) {
		t.Fatal("fired to a removed listener")
	}
}

func TestIDPoolReusesReleasedIDs(t *testing.T) {
	p := NewIDPool()
	a := p.Acquire("a")
	b := p.Acquire("b")
	if a != 0 || b != 1 {
		t.Fatalf("ids = %d, %d", a, b)
	}
	if err := p.Release(a); err != nil {
		t.Fatal(err)
	}
	if err := p.Release(a); err == nil {
		t.Fatal("double release accepted")
	}
	if c := p.Acquire("c"); c != a {
		t.Fatalf("released id not reused: got %d", c)
	}
	if p.Owner(b) != "b" || p.Len() != 2 {
		t.Fatalf("owner %v, len %d", p.Owner(b), p.Len())
	}
	if err := p.Release(42); err == nil {
		t.Fatal("out of range release accepted")
	}
}
