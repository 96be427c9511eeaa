package builtin

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/archlog"
	"github.com/archipelago-rt/runtime/pkg/archsignal"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// SignalManagementInterface wraps pkg/archsignal.Management behind the
// context protocol: init takes the watch set as one or more repeated
// "signal" entries holding a syscall.Signal number; get exposes
// "flags" (a get of "handler.<name>" is a soft miss, since installed
// handlers are not readable back); set installs or, with a nil
// function, removes "handler.<name>".
var SignalManagementInterface = &context.Interface{
	Init: signalInit,
	Final: func(data ptr.Pointer) {
		unwrapSignalMgmt(data).Stop()
	},
	Get: signalGet,
	Set: signalSet,
}

func signalInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	var watch []os.Signal
	for n := sparams; n != nil; n = n.Next {
		if n.Name == "signal" {
			watch = append(watch, syscall.Signal(int(n.Value.Flags)))
		}
	}
	if len(watch) == 0 {
		return ptr.Pointer{}, errcode.EValue
	}

	m, err := archsignal.Start(watch, archlog.Nop())
	if err != nil {
		return ptr.Pointer{}, errcode.EResource
	}
	return ptr.Pointer{
		Data:     unsafe.Pointer(m),
		RefCount: ptr.Alloc(func() {}),
	}, errcode.OK
}

func unwrapSignalMgmt(data ptr.Pointer) *archsignal.Management {
	return (*archsignal.Management)(data.Data)
}

func signalGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	m := unwrapSignalMgmt(data)
	if slot.Name == "flags" {
		return ptr.Pointer{Data: unsafe.Pointer(m.Flags())}, errcode.OK
	}
	if name, ok := handlerName(slot.Name); ok {
		_ = name
		// Individual handler records are write-only from the
		// protocol's perspective (installed via set, invoked by the
		// manager goroutine); there is nothing meaningful to read
		// back, so this is a soft miss rather than an error.
		return ptr.Pointer{}, errcode.SoftMiss
	}
	return ptr.Pointer{}, errcode.SoftMiss
}

func signalSet(data *ptr.Pointer, slot context.SlotDesignator, value ptr.Pointer) errcode.Code {
	m := unwrapSignalMgmt(*data)
	name, ok := handlerName(slot.Name)
	if !ok {
		return errcode.EKey
	}
	if value.Func == nil {
		m.UnregisterHandler(name)
		return errcode.OK
	}
	m.RegisterHandler(name, *unwrapHandler(value))
	return errcode.OK
}

func handlerName(slot string) (string, bool) {
	const prefix = "handler."
	if len(slot) <= len(prefix) || slot[:len(prefix)] != prefix {
		return "", false
	}
	return slot[len(prefix):], true
}

// WrapHandler lifts an archsignal.Handler into a Pointer for use as
// the value of a "handler.<name>" set instruction.
func WrapHandler(h archsignal.Handler) ptr.Pointer {
	return ptr.Pointer{Func: unsafe.Pointer(&h), Flags: ptr.FlagFunction}
}

func unwrapHandler(p ptr.Pointer) *archsignal.Handler {
	return (*archsignal.Handler)(p.Func)
}

// UnwrapFlags exposes the *archsignal.Flags held by a "flags" get
// result, for callers that want to poll or force a flag directly.
func UnwrapFlags(p ptr.Pointer) *archsignal.Flags {
	return (*archsignal.Flags)(p.Data)
}
