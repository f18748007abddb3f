package concurrency

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Task is one unit of work for a ParallelExecutor.
type Task func(ctx context.Context) error

// ParallelExecutor runs a batch of tasks on a bounded number of goroutines.
type ParallelExecutor struct {
	maxWorkers int
}

// NewParallelExecutor creates an executor. maxWorkers <= 0 means GOMAXPROCS.
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &ParallelExecutor{maxWorkers: maxWorkers}
}

// Workers returns the concurrency bound.
func (p *ParallelExecutor) Workers() int { return p.maxWorkers }

// Execute runs every task and returns their errors by index. Tasks are
// started in order with at most Workers running at once. Tasks not yet
// started when ctx is done report ctx.Err() without running.
func (p *ParallelExecutor) Execute(ctx context.Context, tasks []Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	sem := NewSemaphore(p.maxWorkers)
	results := make([]error, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := sem.Acquire(ctx); err != nil {
			results[i] = err
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release()
			if err := ctx.Err(); err != nil {
				results[i] = err
				return
			}
			results[i] = task(ctx)
		}()
	}

	wg.Wait()
	return results
}

// Run executes tasks and stops scheduling new ones after the first failure.
// It returns that first error, or nil.
func (p *ParallelExecutor) Run(ctx context.Context, tasks []Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	wrapped := make([]Task, len(tasks))
	for i, task := range tasks {
		wrapped[i] = func(ctx context.Context) error {
			err := task(ctx)
			if err != nil {
				cancel(err)
			}
			return err
		}
	}

	p.Execute(ctx, wrapped)
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// Semaphore bounds concurrent access to a resource.
type Semaphore struct {
	tickets chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{tickets: make(chan struct{}, capacity)}
}

// Acquire blocks until a ticket is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a ticket.
func (s *Semaphore) Release() {
	<-s.tickets
}
