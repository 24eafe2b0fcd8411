package systems

import (
	"errors"
	"sort"
	"testing"
)

func TestNewJobSystemValidatesArguments(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("got %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Errorf("got %v", err)
	}
}

func TestCallbacksRunOnWaitingGoroutine(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	// results is only touched by callbacks; no lock needed if they run here
	var results []int
	var failures int
	for i := 0; i < 10; i++ {
		i := i
		js.Submit(JobTask{
			Name: "square",
			OnStart: func() (interface{}, error) {
				if i == 7 {
					return nil, errors.New("unlucky")
				}
				return i * i, nil
			},
			OnComplete: func(r interface{}) { results = append(results, r.(int)) },
			OnFailure:  func(error) { failures++ },
		})
	}
	js.Wait()

	if js.Pending() != 0 {
		t.Fatalf("%d jobs still pending", js.Pending())
	}
	if failures != 1 || len(results) != 9 {
		t.Fatalf("results %v, failures %d", results, failures)
	}
	sort.Ints(results)
	if results[0] != 0 || results[8] != 81 {
		t.Errorf("results = %v", results)
	}
}

func TestShutdownDeliversFinishedJobs(t *testing.T) {
	js, err := NewJobSystem(1, 4)
	if err != nil {
		t.Fatal(err)
	}
	delivered := 0
	for i := 0; i < 3; i++ {
		js.Submit(JobTask{
			OnStart:    func() (interface{}, error) { return nil, nil },
			OnComplete: func(interface{}) { delivered++ },
		})
	}
	js.Shutdown()
	if delivered != 3 {
		t.Fatalf("delivered %d callbacks", delivered)
	}
}
