package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Adapter is the workload capability consumed by the dispatcher. An
// adapter is a self-timing unit of work: Invoke runs the work for one
// task index and reports the produced value together with the elapsed
// time the adapter measured around its own execution.
//
// Adapters must be safe to invoke concurrently from independent
// workers and must not rely on shared mutable state between
// invocations — only on the index argument and the verbosity flag.
// When used with ProcessPool the value type R must be
// CBOR-serializable and the adapter must be registered via
// RegisterWorkload so a worker subprocess can rebuild it.
//
// Type parameters:
//   - R: The value type produced per task index
type Adapter[R any] interface {
	// Name identifies the workload, both for reporting and as the
	// registry key for process-kind execution.
	Name() string

	// Invoke runs the work for one task index.
	Invoke(ctx context.Context, index int, verbose bool) (R, time.Duration, error)
}

// AdapterFunc adapts a plain function into an Adapter. Handy for tests
// and ad-hoc thread-kind workloads; it cannot cross a process boundary.
type AdapterFunc[R any] struct {
	WorkloadName string
	Fn           func(ctx context.Context, index int, verbose bool) (R, time.Duration, error)
}

func (a AdapterFunc[R]) Name() string { return a.WorkloadName }

func (a AdapterFunc[R]) Invoke(ctx context.Context, index int, verbose bool) (R, time.Duration, error) {
	return a.Fn(ctx, index, verbose)
}

// PoolKind selects the worker backend used for a dispatch call.
type PoolKind int

const (
	// ThreadPool runs tasks on goroutines sharing process memory.
	ThreadPool PoolKind = iota

	// ProcessPool runs tasks on worker subprocesses; values travel by
	// value across a pipe, never through shared memory.
	ProcessPool
)

func (k PoolKind) String() string {
	switch k {
	case ThreadPool:
		return "thread"
	case ProcessPool:
		return "process"
	default:
		return fmt.Sprintf("poolkind(%d)", int(k))
	}
}

// ParsePoolKind converts a configuration string into a PoolKind.
func ParsePoolKind(s string) (PoolKind, error) {
	switch s {
	case "thread":
		return ThreadPool, nil
	case "process":
		return ProcessPool, nil
	default:
		return 0, fmt.Errorf("%w: unknown pool kind %q", ErrInvalidConfiguration, s)
	}
}

// Collection selects how SubmitCollect aligns outcomes.
type Collection int

const (
	// Ordered waits on task handles in submission order, so
	// Values[i] always corresponds to task index i. A slow task 0
	// blocks collection even when later tasks already finished; that
	// head-of-line blocking is part of the discipline being measured.
	Ordered Collection = iota

	// AsCompleted drains outcomes in real finish order. The result is
	// an arrival-order sequence with no index alignment whatsoever,
	// and the order differs between runs.
	AsCompleted
)

func (c Collection) String() string {
	switch c {
	case Ordered:
		return "ordered"
	case AsCompleted:
		return "as-completed"
	default:
		return fmt.Sprintf("collection(%d)", int(c))
	}
}

// ParseCollection converts a configuration string into a Collection.
func ParseCollection(s string) (Collection, error) {
	switch s {
	case "ordered":
		return Ordered, nil
	case "as-completed", "completion-order":
		return AsCompleted, nil
	default:
		return 0, fmt.Errorf("%w: unknown collection mode %q", ErrInvalidConfiguration, s)
	}
}

// Batch is the aggregated outcome of one dispatch call.
//
// Values and Times are index-aligned with each other and always have
// exactly N entries on success; a failed dispatch returns no batch at
// all. Under Ordered and MapCollect both sequences are additionally
// aligned with the task index. Total covers pool creation, all
// dispatch, all waits, and pool teardown.
type Batch[R any] struct {
	Values []R
	Times  []time.Duration
	Total  time.Duration
}

// Sum returns the accumulated self-reported task time, which usually
// exceeds Total when tasks ran in parallel.
func (b *Batch[R]) Sum() time.Duration {
	var sum time.Duration
	for _, t := range b.Times {
		sum += t
	}
	return sum
}

// outcome is the result of one adapter invocation as seen by the
// collection loops. Produced by exactly one worker, consumed exactly
// once by the aggregator.
type outcome[R any] struct {
	index   int
	value   R
	elapsed time.Duration
	err     error
}

// handle is the future-like token returned by submitting one task.
type handle[R any] struct {
	done chan outcome[R] // buffered, one send per task
}

func (h *handle[R]) wait() outcome[R] { return <-h.done }

// workerPool is the scoped backend capability behind both pool kinds.
// A pool instance is owned by exactly one dispatch call: the dispatcher
// creates it, drives it with either the handle-based or the bulk
// primitive, and closes it before returning.
type workerPool[R any] interface {
	// submit enqueues one task without blocking and returns a handle
	// resolved when the task finishes.
	submit(index int) *handle[R]

	// enqueue is the bulk primitive: it enqueues one task whose
	// outcome arrives only on the completions stream.
	enqueue(index int)

	// completions is the shared arrival-order outcome stream. Every
	// task outcome is mirrored here exactly once.
	completions() <-chan outcome[R]

	// close stops intake and blocks until all workers have drained
	// and been released.
	close() error
}
