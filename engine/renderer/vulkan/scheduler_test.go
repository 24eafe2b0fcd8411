package vulkan

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type recordedStep struct {
	state FrameState
	slot  int
}

type scriptedSteps struct {
	steps  []recordedStep
	failAt FrameState
	err    error
}

func (s *scriptedSteps) step(state FrameState, slot int, _ *metadata.RenderPacket) error {
	s.steps = append(s.steps, recordedStep{state: state, slot: slot})
	if s.err != nil && state == s.failAt {
		return s.err
	}
	return nil
}

func newScriptedScheduler() (*FrameScheduler, *scriptedSteps) {
	fs := NewFrameScheduler(nil, [FrameOverlap]*FrameSlot{}, FrameSchedulerConfig{})
	steps := &scriptedSteps{}
	fs.steps = steps
	return fs, steps
}

func TestSlotIndex(t *testing.T) {
	for f := uint64(0); f < 10; f++ {
		if got := SlotIndex(f); got != int(f%3) {
			t.Errorf("SlotIndex(%d) = %d", f, got)
		}
	}
}

func TestFrameVisitsStatesInOrder(t *testing.T) {
	fs, steps := newScriptedScheduler()

	if err := fs.Frame(&metadata.RenderPacket{}); err != nil {
		t.Fatal(err)
	}
	want := []FrameState{FrameWaitFence, FrameAcquire, FrameRecordGeometry, FrameRecordLighting, FrameSubmit, FramePresent}
	if len(steps.steps) != len(want) {
		t.Fatalf("visited %d states, want %d", len(steps.steps), len(want))
	}
	for i, s := range steps.steps {
		if s.state != want[i] {
			t.Errorf("step %d = %s, want %s", i, s.state, want[i])
		}
		if s.slot != 0 {
			t.Errorf("step %d used slot %d", i, s.slot)
		}
	}
	if fs.State() != FrameIdle || fs.FrameCount() != 1 {
		t.Errorf("after frame: state %s, count %d", fs.State(), fs.FrameCount())
	}
}

func TestFramesRotateSlots(t *testing.T) {
	fs, steps := newScriptedScheduler()
	for i := 0; i < 5; i++ {
		if err := fs.Frame(&metadata.RenderPacket{}); err != nil {
			t.Fatal(err)
		}
	}
	var slots []int
	for _, s := range steps.steps {
		if s.state == FrameWaitFence {
			slots = append(slots, s.slot)
		}
	}
	want := []int{0, 1, 2, 0, 1}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slots = %v, want %v", slots, want)
		}
	}
}

func TestAcquireFailureKeepsFrameCount(t *testing.T) {
	fs, steps := newScriptedScheduler()
	steps.failAt = FrameAcquire
	steps.err = core.NewError(core.ErrorKindSwapchainOutOfDate, "acquire", nil)

	err := fs.Frame(&metadata.RenderPacket{})
	if !errors.Is(err, core.ErrSwapchainOutOfDate) {
		t.Fatalf("got %v", err)
	}
	if fs.State() != FrameIdle {
		t.Errorf("state after failure = %s", fs.State())
	}
	if fs.FrameCount() != 0 {
		t.Errorf("frame count advanced to %d", fs.FrameCount())
	}
	if last := steps.steps[len(steps.steps)-1].state; last != FrameAcquire {
		t.Errorf("continued past the failed state to %s", last)
	}

	// the same slot is retried
	steps.err = nil
	if err := fs.Frame(&metadata.RenderPacket{}); err != nil {
		t.Fatal(err)
	}
	if fs.FrameCount() != 1 || steps.steps[len(steps.steps)-1].slot != 0 {
		t.Errorf("retry used slot %d, count %d", steps.steps[len(steps.steps)-1].slot, fs.FrameCount())
	}
}

func TestPresentFailureStillCountsFrame(t *testing.T) {
	fs, steps := newScriptedScheduler()
	steps.failAt = FramePresent
	steps.err = core.NewError(core.ErrorKindSwapchainOutOfDate, "present", nil)

	if err := fs.Frame(&metadata.RenderPacket{}); err == nil {
		t.Fatal("expected an error")
	}
	if fs.FrameCount() != 1 {
		t.Errorf("submitted frame not counted: %d", fs.FrameCount())
	}
}

func TestNextStateWraps(t *testing.T) {
	if nextState(FramePresent) != FrameIdle {
		t.Error("present should return to idle")
	}
	if nextState(FrameIdle) != FrameWaitFence {
		t.Error("idle should start with the fence wait")
	}
	if FrameRecordLighting.String() != "record lighting" {
		t.Errorf("String() = %q", FrameRecordLighting.String())
	}
}
