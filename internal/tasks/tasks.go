// Package tasks owns the process's background work: each task has a name,
// an interval, and a lifecycle tied to the runner, instead of ad hoc timers
// scattered through request handling.
package tasks

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one unit of periodic background work.
type Task interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Runner drives tasks on their intervals. Each task runs once immediately
// on Start and then on every tick; a failing run is logged and the
// schedule keeps going.
type Runner struct {
	tasks  []Task
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(tasks ...Task) *Runner {
	return &Runner{tasks: tasks}
}

func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, t := range r.tasks {
		r.wg.Add(1)
		go func(t Task) {
			defer r.wg.Done()
			r.loop(ctx, t)
		}(t)
	}
}

func (r *Runner) loop(ctx context.Context, t Task) {
	run := func() {
		if err := t.Run(ctx); err != nil {
			log.Printf("task %s: %v", t.Name(), err)
		}
	}

	run() // once at start

	ticker := time.NewTicker(t.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// Stop cancels all tasks and waits for in-flight runs to finish. A flush
// mid-batch is not interrupted; it completes or fails whole.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
