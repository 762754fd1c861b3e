package dispatch_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/poolbench/poolbench/dispatch"
)

func assertIndexAligned(t *testing.T, batch *dispatch.Batch[int], n int) {
	t.Helper()

	if len(batch.Values) != n {
		t.Fatalf("expected %d values, got %d", n, len(batch.Values))
	}
	if len(batch.Times) != n {
		t.Fatalf("expected %d times, got %d", n, len(batch.Times))
	}
	for i, v := range batch.Values {
		if v != i {
			t.Errorf("value %d: expected %d, got %d", i, i, v)
		}
	}
	for i, d := range batch.Times {
		if d < 0 {
			t.Errorf("time %d: expected non-negative duration, got %v", i, d)
		}
	}
}

func TestSubmitCollect_OrderedThread(t *testing.T) {
	batch, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 5, dispatch.ThreadPool, dispatch.Ordered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIndexAligned(t, batch, 5)
}

func TestSubmitCollect_OrderedProcess(t *testing.T) {
	batch, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 5, dispatch.ProcessPool, dispatch.Ordered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIndexAligned(t, batch, 5)
}

func TestMapCollect_Thread(t *testing.T) {
	batch, err := dispatch.MapCollect(context.Background(), squareAdapter{}, 4, dispatch.ThreadPool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []int{0, 1, 4, 9}
	if len(batch.Values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(batch.Values))
	}
	for i, want := range expected {
		if batch.Values[i] != want {
			t.Errorf("value %d: expected %d, got %d", i, want, batch.Values[i])
		}
	}
}

func TestMapCollect_Process(t *testing.T) {
	batch, err := dispatch.MapCollect(context.Background(), squareAdapter{}, 4, dispatch.ProcessPool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []int{0, 1, 4, 9}
	for i, want := range expected {
		if batch.Values[i] != want {
			t.Errorf("value %d: expected %d, got %d", i, want, batch.Values[i])
		}
	}
}

func TestSubmitCollect_OrderedDespiteStagger(t *testing.T) {
	// Lower indices finish last; ordered collection must still align
	// by index.
	n := 6
	adapter := &staggerAdapter{Tasks: n}

	batch, err := dispatch.SubmitCollect(context.Background(), adapter, n, dispatch.ThreadPool, dispatch.Ordered,
		dispatch.WithMaxWorkers(n))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIndexAligned(t, batch, n)
}

func TestSubmitCollect_AsCompletedIsPermutation(t *testing.T) {
	n := 6
	adapter := &staggerAdapter{Tasks: n}

	batch, err := dispatch.SubmitCollect(context.Background(), adapter, n, dispatch.ThreadPool, dispatch.AsCompleted,
		dispatch.WithMaxWorkers(n))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Values) != n {
		t.Fatalf("expected %d values, got %d", n, len(batch.Values))
	}

	sorted := append([]int(nil), batch.Values...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("values are not a permutation of task indices: %v", batch.Values)
		}
	}
}

func TestSubmitCollect_AsCompletedProcess(t *testing.T) {
	batch, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 4, dispatch.ProcessPool, dispatch.AsCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sorted := append([]int(nil), batch.Values...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("values are not a permutation of task indices: %v", batch.Values)
		}
	}
}

func TestSubmitCollect_ZeroTasks(t *testing.T) {
	for _, kind := range []dispatch.PoolKind{dispatch.ThreadPool, dispatch.ProcessPool} {
		spy := &spyAdapter{}
		batch, err := dispatch.SubmitCollect(context.Background(), spy, 0, kind, dispatch.Ordered)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", kind, err)
		}
		if batch.Values == nil || len(batch.Values) != 0 {
			t.Errorf("%v: expected empty non-nil values, got %v", kind, batch.Values)
		}
		if batch.Times == nil || len(batch.Times) != 0 {
			t.Errorf("%v: expected empty non-nil times, got %v", kind, batch.Times)
		}
		if got := spy.calls.Load(); got != 0 {
			t.Errorf("%v: expected no invocations, got %d", kind, got)
		}
	}
}

func TestMapCollect_ZeroTasks(t *testing.T) {
	batch, err := dispatch.MapCollect(context.Background(), identityAdapter{}, 0, dispatch.ThreadPool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Values) != 0 || len(batch.Times) != 0 {
		t.Errorf("expected empty batches, got %d values / %d times", len(batch.Values), len(batch.Times))
	}
}

func TestSubmitCollect_NegativeCount(t *testing.T) {
	spy := &spyAdapter{}
	_, err := dispatch.SubmitCollect(context.Background(), spy, -1, dispatch.ThreadPool, dispatch.Ordered)
	if !errors.Is(err, dispatch.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("adapter was invoked despite invalid configuration")
	}
}

func TestSubmitCollect_InvalidKind(t *testing.T) {
	spy := &spyAdapter{}
	_, err := dispatch.SubmitCollect(context.Background(), spy, 3, dispatch.PoolKind(42), dispatch.Ordered)
	if !errors.Is(err, dispatch.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("adapter was invoked despite invalid configuration")
	}
}

func TestSubmitCollect_InvalidMode(t *testing.T) {
	spy := &spyAdapter{}
	_, err := dispatch.SubmitCollect(context.Background(), spy, 3, dispatch.ThreadPool, dispatch.Collection(42))
	if !errors.Is(err, dispatch.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("adapter was invoked despite invalid configuration")
	}
}

func TestSubmitCollect_FailurePropagation(t *testing.T) {
	for _, mode := range []dispatch.Collection{dispatch.Ordered, dispatch.AsCompleted} {
		batch, err := dispatch.SubmitCollect(context.Background(), &failAdapter{At: 2}, 5, dispatch.ThreadPool, mode)
		if err == nil {
			t.Fatalf("%v: expected failure, got batch %v", mode, batch.Values)
		}
		if batch != nil {
			t.Errorf("%v: expected no partial batch, got %v", mode, batch.Values)
		}
	}
}

func TestSubmitCollect_FailurePropagationProcess(t *testing.T) {
	batch, err := dispatch.SubmitCollect(context.Background(), &failAdapter{At: 1}, 3, dispatch.ProcessPool, dispatch.Ordered)
	if err == nil {
		t.Fatalf("expected failure, got batch %v", batch.Values)
	}

	var wErr *dispatch.WorkloadError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected WorkloadError, got %T: %v", err, err)
	}
	if wErr.Index != 1 {
		t.Errorf("expected failing index 1, got %d", wErr.Index)
	}
	if wErr.Workload != "test_fail" {
		t.Errorf("expected workload test_fail, got %q", wErr.Workload)
	}
}

func TestMapCollect_FailurePropagation(t *testing.T) {
	batch, err := dispatch.MapCollect(context.Background(), &failAdapter{At: 0}, 4, dispatch.ThreadPool)
	if err == nil {
		t.Fatalf("expected failure, got batch %v", batch.Values)
	}
	if batch != nil {
		t.Errorf("expected no partial batch, got %v", batch.Values)
	}
}

func TestSubmitCollect_SiblingsStillRunOnFailure(t *testing.T) {
	// A failing task aborts the batch but never cancels its siblings;
	// the pool drains fully before the call returns.
	n := 8
	ran := &countingFailAdapter{at: 3}
	_, err := dispatch.SubmitCollect(context.Background(), ran, n, dispatch.ThreadPool, dispatch.Ordered,
		dispatch.WithMaxWorkers(2))
	if err == nil {
		t.Fatal("expected failure")
	}
	if got := ran.calls.Load(); got != int64(n) {
		t.Errorf("expected all %d tasks to run, got %d", n, got)
	}
}

func TestSubmitCollect_ProcessUnregistered(t *testing.T) {
	_, err := dispatch.SubmitCollect(context.Background(), unregisteredAdapter{}, 3, dispatch.ProcessPool, dispatch.Ordered)
	if !errors.Is(err, dispatch.ErrUnregisteredWorkload) {
		t.Fatalf("expected ErrUnregisteredWorkload, got %v", err)
	}
}

func TestSubmitCollect_Idempotent(t *testing.T) {
	first, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 6, dispatch.ThreadPool, dispatch.Ordered)
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 6, dispatch.ThreadPool, dispatch.Ordered)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	for i := range first.Values {
		if first.Values[i] != second.Values[i] {
			t.Errorf("value %d differs between runs: %d vs %d", i, first.Values[i], second.Values[i])
		}
	}
}

func TestSubmitCollect_TotalCoversDispatch(t *testing.T) {
	sleep := 20 * time.Millisecond
	adapter := dispatch.AdapterFunc[int]{
		WorkloadName: "test_sleepy",
		Fn: func(_ context.Context, index int, _ bool) (int, time.Duration, error) {
			time.Sleep(sleep)
			return index, sleep, nil
		},
	}

	batch, err := dispatch.SubmitCollect(context.Background(), adapter, 2, dispatch.ThreadPool, dispatch.Ordered,
		dispatch.WithMaxWorkers(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Total < 2*sleep {
		t.Errorf("expected total >= %v with one worker, got %v", 2*sleep, batch.Total)
	}
	if batch.Sum() < 2*sleep {
		t.Errorf("expected task time sum >= %v, got %v", 2*sleep, batch.Sum())
	}
}

func TestSubmitCollect_RateLimit(t *testing.T) {
	// 4 tasks at 100/s with burst 1 cannot finish faster than ~30ms.
	start := time.Now()
	batch, err := dispatch.SubmitCollect(context.Background(), identityAdapter{}, 4, dispatch.ThreadPool, dispatch.Ordered,
		dispatch.WithRateLimit(100, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIndexAligned(t, batch, 4)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("rate limit not applied: 4 tasks finished in %v", elapsed)
	}
}

func TestMapCollect_InvalidKind(t *testing.T) {
	_, err := dispatch.MapCollect(context.Background(), identityAdapter{}, 3, dispatch.PoolKind(7))
	if !errors.Is(err, dispatch.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}
