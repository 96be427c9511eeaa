package builtin

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/archlog"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
	"github.com/archipelago-rt/runtime/pkg/threadgroup"
)

// ThreadGroupInterface wraps pkg/threadgroup.Group behind the context
// protocol: init recognizes num_threads (default 1; a "params" entry
// is not read); the only get slot is num_threads. Dispatch itself is reached through Act "dispatch",
// this interface's one side-effecting operation — without it a
// thread-group context would have no way to actually run work.
var ThreadGroupInterface = &context.Interface{
	Init: threadGroupInit,
	Get:  threadGroupGet,
	Act:  threadGroupAct,
}

func threadGroupInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	numThreads := 1
	if v, ok := params.Get(sparams, "num_threads"); ok {
		numThreads = int(v.Flags)
	}
	g := threadgroup.New(numThreads, archlog.Nop())
	return ptr.Pointer{
		Data:     unsafe.Pointer(g),
		RefCount: ptr.Alloc(func() { g.Shutdown() }),
	}, errcode.OK
}

func unwrapThreadGroup(data ptr.Pointer) *threadgroup.Group {
	return (*threadgroup.Group)(data.Data)
}

func threadGroupGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	if slot.Name != "num_threads" {
		return ptr.Pointer{}, errcode.SoftMiss
	}
	g := unwrapThreadGroup(data)
	return ptr.Pointer{Flags: ptr.Flags(g.NumWorkers())}, errcode.OK
}

// threadGroupAct dispatches a work item described by the "size",
// "batch_size", "sync", and "work" parameters. "work" must be a
// Pointer wrapping a threadgroup.WorkFunc (see WrapWorkFunc); the
// completion callback, if any, is taken from "completion"
// (WrapCompletionFunc).
func threadGroupAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	if actionSlot.Name != "dispatch" {
		return ptr.Pointer{}, errcode.EKey
	}
	g := unwrapThreadGroup(*data)

	workVal, ok := params.Get(sparams, "work")
	if !ok {
		return ptr.Pointer{}, errcode.EValue
	}
	work := threadgroup.WorkItem{Fn: unwrapWorkFunc(workVal)}
	if v, ok := params.Get(sparams, "size"); ok {
		work.Size = int(v.Flags)
	}

	var completion threadgroup.CompletionFunc
	if v, ok := params.Get(sparams, "completion"); ok {
		completion = unwrapCompletionFunc(v)
	}

	dp := threadgroup.DispatchParams{}
	if v, ok := params.Get(sparams, "batch_size"); ok {
		dp.BatchSize = int(v.Flags)
	}
	if v, ok := params.Get(sparams, "sync"); ok {
		dp.Sync = ptr.ToBool(v)
	}

	if err := g.Dispatch(work, completion, dp); err != nil {
		return ptr.Pointer{}, errcode.EResource
	}
	return ptr.Pointer{}, errcode.OK
}

// WrapWorkFunc lifts a threadgroup.WorkFunc into a Pointer for use as
// the "work" dispatch parameter.
func WrapWorkFunc(fn threadgroup.WorkFunc) ptr.Pointer {
	return ptr.Pointer{Func: unsafe.Pointer(&fn), Flags: ptr.FlagFunction}
}

func unwrapWorkFunc(p ptr.Pointer) threadgroup.WorkFunc {
	return *(*threadgroup.WorkFunc)(p.Func)
}

// WrapCompletionFunc lifts a threadgroup.CompletionFunc into a
// Pointer for use as the "completion" dispatch parameter.
func WrapCompletionFunc(fn threadgroup.CompletionFunc) ptr.Pointer {
	return ptr.Pointer{Func: unsafe.Pointer(&fn), Flags: ptr.FlagFunction}
}

func unwrapCompletionFunc(p ptr.Pointer) threadgroup.CompletionFunc {
	return *(*threadgroup.CompletionFunc)(p.Func)
}
