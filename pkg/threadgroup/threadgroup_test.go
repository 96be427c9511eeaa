package threadgroup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestDispatchCoversEveryIndexOnce dispatches 10000 indices across 4
// workers with auto batch size and verifies the work function ran
// exactly once per index (the sum over [0, 10000) is 49995000) and
// the completion callback ran exactly once, after the last index.
func TestDispatchCoversEveryIndexOnce(t *testing.T) {
	const size = 10000
	g := New(4, nil)

	seen := make([]atomic.Int32, size)
	var sum atomic.Int64
	var completions atomic.Int32

	err := g.Dispatch(
		WorkItem{
			Fn: func(index, workerIndex int) {
				seen[index].Add(1)
				sum.Add(int64(index))
			},
			Size: size,
		},
		func(n, workerIndex int) {
			completions.Add(1)
			if n != size {
				t.Errorf("completion size = %d, want %d", n, size)
			}
		},
		DispatchParams{BatchSize: 0, Sync: true},
	)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if got, want := sum.Load(), int64(size)*(size-1)/2; got != want {
		t.Fatalf("sum of indices = %d, want %d", got, want)
	}
	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("index %d ran %d times, want 1", i, n)
		}
	}
	if completions.Load() != 1 {
		t.Fatalf("completions = %d, want 1", completions.Load())
	}
}

// TestDispatchExplicitBatchSize exercises a batch size that does not
// divide the work size evenly, so the last claim is a partial batch.
func TestDispatchExplicitBatchSize(t *testing.T) {
	const size = 103
	g := New(3, nil)

	var count atomic.Int64
	err := g.Dispatch(
		WorkItem{Fn: func(index, workerIndex int) { count.Add(1) }, Size: size},
		nil,
		DispatchParams{BatchSize: 10, Sync: true},
	)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if count.Load() != size {
		t.Fatalf("work ran %d times, want %d", count.Load(), size)
	}
}

// TestDispatchZeroSizeStillCompletes verifies an empty work item
// invokes the completion callback exactly once and nothing else.
func TestDispatchZeroSizeStillCompletes(t *testing.T) {
	g := New(2, nil)

	var completions atomic.Int32
	err := g.Dispatch(
		WorkItem{Fn: func(int, int) { t.Error("work ran for size 0") }, Size: 0},
		func(n, workerIndex int) {
			completions.Add(1)
			if n != 0 {
				t.Errorf("completion size = %d, want 0", n)
			}
		},
		DispatchParams{Sync: true},
	)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if completions.Load() != 1 {
		t.Fatalf("completions = %d, want 1", completions.Load())
	}
}

// TestDispatchFireAndForgetFlagBarrier observes an async dispatch
// through the flag-barrier completion construct.
func TestDispatchFireAndForgetFlagBarrier(t *testing.T) {
	const size = 500
	g := New(4, nil)

	var count atomic.Int64
	var barrier FlagBarrier

	err := g.Dispatch(
		WorkItem{Fn: func(index, workerIndex int) { count.Add(1) }, Size: size},
		barrier.Callback(),
		DispatchParams{Sync: false},
	)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := barrier.Wait(ctx); err != nil {
		t.Fatalf("barrier.Wait: %v", err)
	}
	if !barrier.IsDone() {
		t.Fatal("barrier not done after Wait returned")
	}
	if count.Load() != size {
		t.Fatalf("work ran %d times, want %d", count.Load(), size)
	}
}

// TestDispatchRejectsBadSizeAndShutdown covers the two structured
// failure paths: a negative work size and a group that has been shut
// down.
func TestDispatchRejectsBadSizeAndShutdown(t *testing.T) {
	g := New(2, nil)

	if err := g.Dispatch(WorkItem{Size: -1}, nil, DispatchParams{Sync: true}); err == nil {
		t.Fatal("Dispatch with negative size must fail")
	}

	g.Shutdown()
	if err := g.Dispatch(WorkItem{Size: 1}, nil, DispatchParams{Sync: true}); err == nil {
		t.Fatal("Dispatch after Shutdown must fail")
	}
}

// TestCompletionRunsAfterAllWork verifies the callback fires only
// after every index has completed: the callback snapshots the count
// and must observe it already at full size.
func TestCompletionRunsAfterAllWork(t *testing.T) {
	const size = 2000
	g := New(4, nil)

	var count atomic.Int64
	var observed atomic.Int64

	err := g.Dispatch(
		WorkItem{Fn: func(index, workerIndex int) { count.Add(1) }, Size: size},
		func(n, workerIndex int) { observed.Store(count.Load()) },
		DispatchParams{Sync: true},
	)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if observed.Load() != size {
		t.Fatalf("callback observed %d completed indices, want %d", observed.Load(), size)
	}
}
