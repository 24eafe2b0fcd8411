package systems

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/umbra/engine/containers"
	"github.com/spaghettifunk/umbra/engine/core"
)

// JobTask is a unit of work run on a worker goroutine. OnComplete and
// OnFailure are not called by the worker: they run on the goroutine that
// calls Update, which is where GPU work may happen.
type JobTask struct {
	Name       string
	OnStart    func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu   sync.Mutex
	done *containers.RingQueue[jobResult]
	// signalled when a result is queued
	ready   chan struct{}
	pending atomic.Int64
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		done:       containers.NewRingQueue[jobResult](channelSize + numWorkers),
		ready:      make(chan struct{}, 1),
	}
	js.start()
	core.LogDebug("Job system started with %d workers.", numWorkers)
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.OnStart()
				js.mu.Lock()
				js.done.Enqueue(jobResult{task: job, result: result, err: err})
				js.mu.Unlock()
				select {
				case js.ready <- struct{}{}:
				default:
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Jobs already submitted still run; their
 * callbacks are delivered by this call.
 */
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	js.Update()
	return nil
}

/**
 * @brief Runs the callbacks of every finished job on the calling goroutine.
 * Should happen once an update cycle. Returns the number of jobs handled.
 */
func (js *JobSystem) Update() int {
	handled := 0
	for {
		js.mu.Lock()
		r, err := js.done.Dequeue()
		js.mu.Unlock()
		if err != nil {
			return handled
		}

		if r.err != nil {
			core.LogError("job %s failed: %s", r.task.Name, r.err.Error())
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
		} else if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
		js.pending.Add(-1)
		handled++
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.pending.Add(1)
	js.jobQueue <- jt
}

// Wait blocks until every submitted job ran and delivers their callbacks.
func (js *JobSystem) Wait() {
	for {
		js.Update()
		if js.pending.Load() == 0 {
			return
		}
		<-js.ready
	}
}

// Pending is the number of submitted jobs whose callbacks have not run yet.
func (js *JobSystem) Pending() int {
	return int(js.pending.Load())
}
