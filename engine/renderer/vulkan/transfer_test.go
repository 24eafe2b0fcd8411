package vulkan

import (
	"errors"
	"testing"
)

type shotLog struct {
	steps []string
}

func (l *shotLog) shot(failAt string) oneShot {
	step := func(name string) error {
		l.steps = append(l.steps, name)
		if name == failAt {
			return errors.New(name + " failed")
		}
		return nil
	}
	return oneShot{
		begin: func() (*VulkanCommandBuffer, error) {
			if err := step("begin"); err != nil {
				return nil, err
			}
			return &VulkanCommandBuffer{}, nil
		},
		end:    func(*VulkanCommandBuffer) error { return step("end") },
		submit: func(*VulkanCommandBuffer) error { return step("submit") },
		wait:   func() error { return step("wait") },
		drain:  func() { l.steps = append(l.steps, "drain") },
		free:   func(*VulkanCommandBuffer) { l.steps = append(l.steps, "free") },
	}
}

func (l *shotLog) freed() int {
	n := 0
	for _, s := range l.steps {
		if s == "free" {
			n++
		}
	}
	return n
}

func TestOneShotFreesTheBufferOnEveryPath(t *testing.T) {
	for _, failAt := range []string{"", "record", "end", "submit", "wait"} {
		t.Run("fail at "+failAt, func(t *testing.T) {
			log := &shotLog{}
			err := log.shot(failAt).run(func(*VulkanCommandBuffer) error {
				log.steps = append(log.steps, "record")
				if failAt == "record" {
					return errors.New("record failed")
				}
				return nil
			})
			if (err != nil) != (failAt != "") {
				t.Fatalf("err = %v", err)
			}
			if log.freed() != 1 {
				t.Fatalf("buffer freed %d times, steps %v", log.freed(), log.steps)
			}
			if last := log.steps[len(log.steps)-1]; last != "free" {
				t.Errorf("last step = %s, want free", last)
			}
		})
	}
}

func TestOneShotDrainsQueueBeforeFreeAfterFailedWait(t *testing.T) {
	log := &shotLog{}
	if err := log.shot("wait").run(func(*VulkanCommandBuffer) error { return nil }); err == nil {
		t.Fatal("expected the wait error")
	}
	want := []string{"begin", "end", "submit", "wait", "drain", "free"}
	if len(log.steps) != len(want) {
		t.Fatalf("steps = %v, want %v", log.steps, want)
	}
	for i := range want {
		if log.steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", log.steps, want)
		}
	}
}

func TestOneShotFailedBeginFreesNothing(t *testing.T) {
	log := &shotLog{}
	if err := log.shot("begin").run(func(*VulkanCommandBuffer) error { return nil }); err == nil {
		t.Fatal("expected the begin error")
	}
	if log.freed() != 0 {
		t.Fatalf("steps = %v", log.steps)
	}
}
