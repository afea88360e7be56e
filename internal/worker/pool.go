package worker

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Status describes what happened to a submitted job by the time Run returned
type Status int

const (
	// StatusCancelled jobs never started; the deadline passed while they were queued
	StatusCancelled Status = iota
	// StatusAbandoned jobs were running at the deadline; their result is discarded
	StatusAbandoned
	// StatusDone jobs finished before the deadline
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "cancelled"
	}
}

// Outcome pairs a job's final status with its result (set only when done)
type Outcome struct {
	Status Status
	Result Result
}

// Err returns the job error, or a context error for jobs that did not finish
func (o Outcome) Err() error {
	switch o.Status {
	case StatusDone:
		if o.Result == nil {
			return nil
		}
		return o.Result.GetError()
	case StatusAbandoned:
		return context.DeadlineExceeded
	default:
		return context.Canceled
	}
}

// Pool runs submitted jobs on a bounded number of workers
type Pool struct {
	workers int
	jobs    []Job
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Submit queues a job and returns its index in Run's outcome slice
func (p *Pool) Submit(job Job) int {
	p.jobs = append(p.jobs, job)
	return len(p.jobs) - 1
}

type completion struct {
	index  int
	result Result
}

// Run executes all submitted jobs and waits for them under one shared
// timeout (zero means no timeout). Outcomes are indexed by submission order.
//
// When the timeout elapses the shared context is cancelled: queued jobs are
// never started and running jobs see ctx.Done(). Run returns at the deadline
// without waiting for running jobs; a job whose work cannot be interrupted
// keeps its goroutine until it returns, and its result is dropped.
func (p *Pool) Run(ctx context.Context, timeout time.Duration) []Outcome {
	n := len(p.jobs)
	outcomes := make([]Outcome, n)
	if n == 0 {
		return outcomes
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	queue := make(chan int, n)
	for i := range p.jobs {
		queue <- i
	}
	close(queue)

	// Buffered to n so workers never block on a waiter that has gone away
	done := make(chan completion, n)
	started := make([]atomic.Bool, n)

	workers := min(p.workers, n)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range queue {
				if runCtx.Err() != nil {
					return nil
				}
				started[idx].Store(true)
				res := p.jobs[idx].Execute(runCtx)
				if runCtx.Err() != nil {
					// Finished after the deadline; the result is discarded
					return nil
				}
				done <- completion{index: idx, result: res}
			}
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	received := 0
collect:
	for received < n {
		select {
		case c := <-done:
			outcomes[c.index] = Outcome{Status: StatusDone, Result: c.result}
			received++
		case <-finished:
			break collect
		case <-runCtx.Done():
			break collect
		}
	}

	// Pick up anything that completed while we were deciding to stop
	for {
		select {
		case c := <-done:
			outcomes[c.index] = Outcome{Status: StatusDone, Result: c.result}
			continue
		default:
		}
		break
	}

	for i := range outcomes {
		if outcomes[i].Status == StatusDone {
			continue
		}
		if started[i].Load() {
			outcomes[i].Status = StatusAbandoned
		} else {
			outcomes[i].Status = StatusCancelled
		}
	}

	return outcomes
}
