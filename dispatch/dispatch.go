package dispatch

import (
	"context"
	"fmt"
	"time"
)

// SubmitCollect submits n indexed tasks to a scoped pool of the given
// kind and collects their outcomes under the requested collection
// discipline.
//
// With Ordered collection, Values[i] and Times[i] correspond to task
// index i, at the cost of head-of-line blocking while waiting on each
// handle in submission order. With AsCompleted collection, outcomes
// appear in real finish order and carry no index alignment.
//
// The pool is created fresh for the call and torn down before control
// returns, on every exit path. If any task fails the whole call fails
// after all in-flight tasks have finished; a truncated batch is never
// returned. Batch.Total covers pool creation, dispatch, waits, and
// teardown.
func SubmitCollect[R any](ctx context.Context, adapter Adapter[R], n int, kind PoolKind, mode Collection, opts ...Option) (*Batch[R], error) {
	if err := validate(n, kind); err != nil {
		return nil, err
	}
	if mode != Ordered && mode != AsCompleted {
		return nil, fmt.Errorf("%w: unknown collection mode %d", ErrInvalidConfiguration, int(mode))
	}

	run := Timed(func() (*Batch[R], error) {
		return submitCollect(ctx, adapter, n, kind, mode, newDispatchConfig(opts...))
	})
	return total(run())
}

// MapCollect dispatches n indexed tasks through the pool's bulk
// primitive: tasks flow through the shared queue without per-task
// handles and workers' outcomes are folded into index-owned slots, so
// the batch is always index-aligned. Semantically this matches
// SubmitCollect in Ordered mode; it trades early-completion visibility
// for lower per-task overhead.
//
// Pool scoping, failure, and timing semantics are identical to
// SubmitCollect.
func MapCollect[R any](ctx context.Context, adapter Adapter[R], n int, kind PoolKind, opts ...Option) (*Batch[R], error) {
	if err := validate(n, kind); err != nil {
		return nil, err
	}

	run := Timed(func() (*Batch[R], error) {
		return mapCollect(ctx, adapter, n, kind, newDispatchConfig(opts...))
	})
	return total(run())
}

func validate(n int, kind PoolKind) error {
	if n < 0 {
		return fmt.Errorf("%w: negative task count %d", ErrInvalidConfiguration, n)
	}
	if kind != ThreadPool && kind != ProcessPool {
		return fmt.Errorf("%w: unknown pool kind %d", ErrInvalidConfiguration, int(kind))
	}
	return nil
}

// total folds the dispatcher-boundary elapsed time into the batch.
func total[R any](b *Batch[R], elapsed time.Duration, err error) (*Batch[R], error) {
	if err != nil {
		return nil, err
	}
	b.Total = elapsed
	return b, nil
}

func openPool[R any](ctx context.Context, adapter Adapter[R], n int, kind PoolKind, cfg *dispatchConfig) (workerPool[R], error) {
	switch kind {
	case ThreadPool:
		return openThreadPool(ctx, adapter, n, cfg), nil
	case ProcessPool:
		return openProcessPool(ctx, adapter, n, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown pool kind %d", ErrInvalidConfiguration, int(kind))
	}
}

func submitCollect[R any](ctx context.Context, adapter Adapter[R], n int, kind PoolKind, mode Collection, cfg *dispatchConfig) (batch *Batch[R], err error) {
	if n == 0 {
		return emptyBatch[R](), nil
	}

	pool, err := openPool(ctx, adapter, n, kind, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := pool.close(); cerr != nil && err == nil {
			batch, err = nil, cerr
		}
	}()

	handles := make([]*handle[R], n)
	for i := 0; i < n; i++ {
		handles[i] = pool.submit(i)
	}

	outcomes := make([]outcome[R], 0, n)
	if mode == Ordered {
		// Wait in submission order even when later handles resolved
		// first; the blocking profile is the point of this discipline.
		for _, h := range handles {
			outcomes = append(outcomes, h.wait())
		}
	} else {
		for i := 0; i < n; i++ {
			outcomes = append(outcomes, <-pool.completions())
		}
	}

	return reduce(outcomes)
}

func mapCollect[R any](ctx context.Context, adapter Adapter[R], n int, kind PoolKind, cfg *dispatchConfig) (batch *Batch[R], err error) {
	if n == 0 {
		return emptyBatch[R](), nil
	}

	pool, err := openPool(ctx, adapter, n, kind, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := pool.close(); cerr != nil && err == nil {
			batch, err = nil, cerr
		}
	}()

	for i := 0; i < n; i++ {
		pool.enqueue(i)
	}

	b := &Batch[R]{
		Values: make([]R, n),
		Times:  make([]time.Duration, n),
	}
	var firstErr error
	for i := 0; i < n; i++ {
		out := <-pool.completions()
		if out.err != nil && firstErr == nil {
			firstErr = out.err
		}
		b.Values[out.index] = out.value
		b.Times[out.index] = out.elapsed
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return b, nil
}

// reduce turns collected outcomes into a batch, failing the whole call
// on the first task error encountered in collection order.
func reduce[R any](outcomes []outcome[R]) (*Batch[R], error) {
	b := &Batch[R]{
		Values: make([]R, len(outcomes)),
		Times:  make([]time.Duration, len(outcomes)),
	}
	for i, out := range outcomes {
		if out.err != nil {
			return nil, out.err
		}
		b.Values[i] = out.value
		b.Times[i] = out.elapsed
	}
	return b, nil
}

func emptyBatch[R any]() *Batch[R] {
	return &Batch[R]{Values: []R{}, Times: []time.Duration{}}
}
