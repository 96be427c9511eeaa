package archsignal

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// TestDispatchSetsFlag starts signal management watching SIGUSR1,
// registers a handler that returns true, raises SIGUSR1, and observes
// the flag set and the handler invoked exactly once.
func TestDispatchSetsFlag(t *testing.T) {
	m, err := Start([]os.Signal{syscall.SIGUSR1}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	var invocations atomic.Int32
	m.RegisterHandler("h1", Handler{Fn: func(sig os.Signal) bool {
		invocations.Add(1)
		return true
	}})

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if m.Flags().IsSet(syscall.SIGUSR1.String()) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !m.Flags().IsSet(syscall.SIGUSR1.String()) {
		t.Fatal("flag not set within deadline")
	}
	if invocations.Load() != 1 {
		t.Fatalf("invocations = %d, want 1", invocations.Load())
	}
}

// TestFlagMonotonicUntilUserUnset verifies that once set, a flag
// remains set until a user-initiated unset.
func TestFlagMonotonicUntilUserUnset(t *testing.T) {
	f := newFlags()
	f.Set("SIGTEST", true)
	if !f.IsSet("SIGTEST") {
		t.Fatal("expected flag set")
	}
	if !f.IsSet("SIGTEST") {
		t.Fatal("flag must remain set on repeated reads")
	}
	f.Set("SIGTEST", false)
	if f.IsSet("SIGTEST") {
		t.Fatal("flag must clear after user-initiated unset")
	}
}

// TestOnlyOneManagementPerProcess verifies that only one
// signal-management subsystem may exist per process.
func TestOnlyOneManagementPerProcess(t *testing.T) {
	m, err := Start([]os.Signal{syscall.SIGUSR2}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if _, err := Start([]os.Signal{syscall.SIGUSR2}, nil); err == nil {
		t.Fatal("expected second Start to fail while the first is active")
	}
}

// TestUnregisterHandlerStopsInvocation verifies a removed handler no
// longer contributes to the OR'd verdict.
func TestUnregisterHandlerStopsInvocation(t *testing.T) {
	m, err := Start([]os.Signal{syscall.SIGUSR1}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	var invocations atomic.Int32
	m.RegisterHandler("h1", Handler{Fn: func(sig os.Signal) bool {
		invocations.Add(1)
		return true
	}})
	m.UnregisterHandler("h1")

	syscall.Kill(os.Getpid(), syscall.SIGUSR1)
	time.Sleep(50 * time.Millisecond)

	if invocations.Load() != 0 {
		t.Fatalf("invocations = %d, want 0 after unregister", invocations.Load())
	}
}
