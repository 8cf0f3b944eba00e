// Package task runs edcore's background work — parses, searches, snapshot
// writes — on a bounded worker pool with cooperative cancellation (spec §5
// concurrency model). Adapted from the teacher's `golang.org/x/sync`
// dependency, which the teacher's go.mod declares but only ever reaches
// from test fixtures; this package gives it the concrete home SPEC_FULL §3
// calls for.
package task

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds how many tasks an Executor runs at once when
// the caller doesn't specify one — conservative enough to leave headroom
// for the host editor's own goroutines on a small machine.
const DefaultMaxConcurrent = 4

// Executor runs tasks submitted via Go on a semaphore-bounded pool, each
// wrapped by the shared errgroup so a single failing task's error is
// reported by Wait without silently swallowing the rest.
type Executor struct {
	sem   *semaphore.Weighted
	group *errgroup.Group
	ctx   context.Context
}

// New returns an Executor bounded to maxConcurrent simultaneous tasks
// (DefaultMaxConcurrent if <= 0), deriving its internal context from ctx so
// cancelling ctx cancels every task's own context.Context argument.
func New(ctx context.Context, maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	group, gctx := errgroup.WithContext(ctx)
	return &Executor{
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		group: group,
		ctx:   gctx,
	}
}

// Go submits fn to run once a worker slot is free. fn receives the
// Executor's shared context, which is cancelled the moment any
// previously-submitted task returns a non-nil error, or the Executor's
// parent context is cancelled — fn must check ctx.Err() at cooperative
// cancellation points (spec §5: cancellation is cooperative, not
// preemptive).
//
// Go itself blocks until a worker slot is available or ctx is cancelled;
// it returns that acquisition error immediately without scheduling fn.
func (e *Executor) Go(fn func(ctx context.Context) error) error {
	if err := e.sem.Acquire(e.ctx, 1); err != nil {
		return fmt.Errorf("task: acquiring worker slot: %w", err)
	}
	e.group.Go(func() error {
		defer e.sem.Release(1)
		return fn(e.ctx)
	})
	return nil
}

// TryGo submits fn only if a worker slot is immediately available,
// returning false without blocking otherwise — used by callers that want
// to skip rather than queue (e.g. a debounced re-parse that would rather
// wait for the next edit than pile up behind a slow one).
func (e *Executor) TryGo(fn func(ctx context.Context) error) bool {
	if !e.sem.TryAcquire(1) {
		return false
	}
	e.group.Go(func() error {
		defer e.sem.Release(1)
		return fn(e.ctx)
	})
	return true
}

// Wait blocks until every submitted task has returned, and returns the
// first non-nil error encountered (errgroup semantics).
func (e *Executor) Wait() error {
	return e.group.Wait()
}

// Context returns the Executor's shared context, cancelled on the first
// task error or parent cancellation.
func (e *Executor) Context() context.Context {
	return e.ctx
}
