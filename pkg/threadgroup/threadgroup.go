// Package threadgroup implements a fixed-size worker group and
// divisible work-item dispatch: each dispatch runs N worker goroutines
// (none are kept running between dispatches), atomic batch claiming
// over a work item, and a completion callback fired by whoever claims
// the final batch.
package threadgroup

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/archipelago-rt/runtime/pkg/archlog"
)

// WorkFunc is called once per claimed index, as fn(index, workerIndex).
type WorkFunc func(index, workerIndex int)

// CompletionFunc is called exactly once, after the last index
// completes, as fn(size, workerIndex) where workerIndex identifies the
// worker that claimed the final batch.
type CompletionFunc func(size, workerIndex int)

// WorkItem is a divisible-by-index, indivisible-by-worker job.
type WorkItem struct {
	Fn   WorkFunc
	Size int
}

// DispatchParams configures one dispatch call.
type DispatchParams struct {
	// BatchSize is how many indices each worker claims per round. 0
	// means "auto": ceil(size / workers).
	BatchSize int
	// Name is used in diagnostic log lines; an empty name is replaced
	// with a generated correlation id.
	Name string
	// Sync blocks Dispatch until the completion callback has returned.
	// Fire-and-forget (Sync == false) returns as soon as work has been
	// handed to the pool; the caller observes completion through the
	// callback itself or an external barrier (see FlagBarrier).
	Sync bool
}

// Group is a fixed-size worker pool. The zero value is not valid; use
// New.
type Group struct {
	numWorkers int
	log        *zap.SugaredLogger

	mu       sync.Mutex
	shutdown bool
}

// New creates a thread-group with numWorkers workers. Workers are not
// separate persistent goroutines between dispatches in this
// realization: nothing requires work to be visible between dispatches,
// only that a fixed worker count partitions each dispatch.
func New(numWorkers int, log *zap.SugaredLogger) *Group {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = archlog.Nop()
	}
	return &Group{numWorkers: numWorkers, log: log}
}

// NumWorkers returns the worker count, exposed via the "num_threads"
// get slot of the thread_group built-in interface.
func (g *Group) NumWorkers() int {
	return g.numWorkers
}

// Dispatch fans work out across the group's workers. completion is
// invoked exactly once, by the worker that claims the final batch.
// Returns an error only via a panic-free bad-arguments path (size < 0)
// or if the group has been Shutdown; worker functions cannot fail in a
// structured way.
func (g *Group) Dispatch(work WorkItem, completion CompletionFunc, p DispatchParams) error {
	g.mu.Lock()
	down := g.shutdown
	g.mu.Unlock()
	if down {
		return errGroupShutdown
	}
	if work.Size < 0 {
		return errBadSize
	}

	name := p.Name
	if name == "" {
		name = uuid.NewString()
	}
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = (work.Size + g.numWorkers - 1) / g.numWorkers
		if batchSize <= 0 {
			batchSize = 1
		}
	}

	g.log.Debugw("dispatch starting", "name", name, "size", work.Size, "workers", g.numWorkers, "batch_size", batchSize)

	run := func() {
		g.run(work, completion, batchSize)
		g.log.Debugw("dispatch finished", "name", name)
	}

	if p.Sync {
		run()
		return nil
	}

	go run()
	return nil
}

// run partitions work across the group's workers using an errgroup.Group
// as the wait-for-completion barrier: each worker is one eg.Go call,
// and run does not return until every worker has drained the claim
// counter.
func (g *Group) run(work WorkItem, completion CompletionFunc, batchSize int) {
	var claimed atomic.Int64
	var remaining atomic.Int64
	remaining.Store(int64(work.Size))

	if work.Size == 0 {
		if completion != nil {
			completion(0, 0)
		}
		return
	}

	var eg errgroup.Group
	for w := 0; w < g.numWorkers; w++ {
		workerIndex := w
		eg.Go(func() error {
			for {
				start := claimed.Add(int64(batchSize)) - int64(batchSize)
				if start >= int64(work.Size) {
					return nil
				}
				end := start + int64(batchSize)
				if end > int64(work.Size) {
					end = int64(work.Size)
				}
				for i := start; i < end; i++ {
					if work.Fn != nil {
						work.Fn(int(i), workerIndex)
					}
				}
				left := remaining.Add(-(end - start))
				if left == 0 {
					if completion != nil {
						completion(work.Size, workerIndex)
					}
					return nil
				}
			}
		})
	}
	eg.Wait()
}

// Shutdown marks the group as no longer accepting dispatches. It does
// not interrupt in-flight work (cancellation is cooperative only).
func (g *Group) Shutdown() {
	g.mu.Lock()
	g.shutdown = true
	g.mu.Unlock()
}

var (
	errGroupShutdown = dispatchError("thread group is shutting down")
	errBadSize       = dispatchError("work item size must be non-negative")
)

type dispatchError string

func (e dispatchError) Error() string { return string(e) }

// FlagBarrier is an auxiliary completion construct: an atomic flag
// stored-released when the completion callback fires, with a
// companion predicate to spin/poll on.
type FlagBarrier struct {
	done atomic.Bool
}

// Callback returns a CompletionFunc that sets the barrier's flag.
func (b *FlagBarrier) Callback() CompletionFunc {
	return func(int, int) { b.done.Store(true) }
}

// IsDone reports whether the barrier's flag has been set.
func (b *FlagBarrier) IsDone() bool {
	return b.done.Load()
}

// Wait blocks until the barrier fires or ctx is done, using a
// ticker-driven poll loop rather than a channel, since the flag may be
// set from any of the group's worker goroutines.
func (b *FlagBarrier) Wait(ctx context.Context) error {
	if b.IsDone() {
		return nil
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if b.IsDone() {
				return nil
			}
		}
	}
}
