// Package testhelpers provides small shared fixtures for
// refcount-conservation tests: wrap a TrackedAllocator around a
// context's destructor and assert that Live() returns to zero once
// every tracked context has round-tripped through INIT and FINAL.
package testhelpers

import "sync/atomic"

// TrackedAllocator counts outstanding "live" allocations: call Alloc
// when a resource is created and the returned func when it is
// destroyed. Live reports the current outstanding count, which every
// refcount-conservation test asserts returns to zero after the
// tracked contexts are finalized.
type TrackedAllocator struct {
	live atomic.Int64
}

// Alloc records one live allocation and returns the release function
// to call from the owning object's destructor.
func (a *TrackedAllocator) Alloc() (release func()) {
	a.live.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			a.live.Add(-1)
		}
	}
}

// Live returns the current outstanding allocation count.
func (a *TrackedAllocator) Live() int64 {
	return a.live.Load()
}
