package builtin

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/archipelago-rt/runtime/pkg/archsignal"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// TestSignalManagementInterfaceLifecycle drives SignalManagementInterface
// through the context protocol: init with a watched signal, set a
// handler, raise the signal, and observe the flag through "flags".
func TestSignalManagementInterfaceLifecycle(t *testing.T) {
	sparams := params.ViewPrepend(nil, "signal", ptr.Pointer{Flags: ptr.Flags(syscall.SIGUSR1)})
	ifacePtr := context.Wrap(SignalManagementInterface, ptr.Alloc(func() {}))

	ctx, status := context.Initialize(ifacePtr, sparams)
	if status.IsError() {
		t.Fatalf("Initialize: %v", status)
	}
	defer ctx.Release()

	var invocations atomic.Int32
	handlerVal := WrapHandler(archsignal.Handler{Fn: func(sig os.Signal) bool {
		invocations.Add(1)
		return true
	}})
	status = context.SetSlot(ctx, context.SlotDesignator{Name: "handler.h1"}, handlerVal)
	if status != errcode.OK {
		t.Fatalf("SetSlot handler.h1: %v", status)
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	flagsVal, status := context.GetSlot(ctx, context.SlotDesignator{Name: "flags"})
	if status != errcode.OK {
		t.Fatalf("GetSlot flags: %v", status)
	}
	flags := UnwrapFlags(flagsVal)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if flags.IsSet(syscall.SIGUSR1.String()) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !flags.IsSet(syscall.SIGUSR1.String()) {
		t.Fatal("flag not set within deadline")
	}
	if invocations.Load() != 1 {
		t.Fatalf("invocations = %d, want 1", invocations.Load())
	}

	status = context.SetSlot(ctx, context.SlotDesignator{Name: "handler.h1"}, ptr.Pointer{})
	if status != errcode.OK {
		t.Fatalf("SetSlot unregister: %v", status)
	}
}

func TestSignalManagementInterfaceRejectsEmptyWatchSet(t *testing.T) {
	ifacePtr := context.Wrap(SignalManagementInterface, ptr.Alloc(func() {}))
	_, status := context.Initialize(ifacePtr, nil)
	if status != errcode.EValue {
		t.Fatalf("Initialize with no signals = %v, want EValue", status)
	}
}
