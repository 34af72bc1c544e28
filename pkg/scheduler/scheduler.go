package scheduler

import (
	"context"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler owns a set of repeating and one-shot timers that all share one
// lifetime. Stop cancels every timer started from this scheduler; individual
// timers can be stopped early through their Handle.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Handle cancels a single scheduled timer.
type Handle struct {
	cancel context.CancelFunc
}

func (h *Handle) Stop() { h.cancel() }

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

func (s *Scheduler) Stop() { s.cancel() }

// Every runs job on a fixed interval until the handle or scheduler is stopped.
func (s *Scheduler) Every(d time.Duration, job Job) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	go loopEvery(ctx, d, job)
	return &Handle{cancel: cancel}
}

// OnceAfter runs job once after d, unless stopped first.
func (s *Scheduler) OnceAfter(d time.Duration, job Job) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	go onceAfter(ctx, d, job)
	return &Handle{cancel: cancel}
}

func loopEvery(ctx context.Context, d time.Duration, job Job) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			job.Run(ctx)
		}
	}
}

func onceAfter(ctx context.Context, d time.Duration, job Job) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(d):
		job.Run(ctx)
	}
}
