package pipeline

import (
	"context"
	"sync"
)

// Runner executes fire-and-forget background work. There is no cancellation
// in the current contract; the handle exists so callers can observe
// completion and so a future retry or cancel policy has a seam to hook into.
type Runner struct {
	wg sync.WaitGroup
}

// Handle tracks a single background run.
type Handle struct {
	done chan struct{}
}

// Done returns a channel closed when the run finishes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Go runs fn on its own goroutine, detached from the caller's context
// lifetime. The parent's values (loggers, trace fields) survive; its
// cancellation does not, because the originating request may complete long
// before the run does.
func (r *Runner) Go(ctx context.Context, fn func(ctx context.Context)) *Handle {
	h := &Handle{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)
		fn(detached)
	}()
	return h
}

// Wait blocks until every run started through Go has finished. Used on
// shutdown so in-flight work orders reach a terminal status.
func (r *Runner) Wait() {
	r.wg.Wait()
}
