// Package exe implements the executor entry point: it boots a
// registry, runs an instruction stream in order, resolves the
// well-known entry_state/transition keys, drives the hierarchical
// state processor, and tears the registry down. App is a thin wrapper
// bundling a registry pointer with lifecycle helpers.
package exe

import (
	"syscall"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/archipelago-rt/runtime/pkg/archlog"
	"github.com/archipelago-rt/runtime/pkg/builtin"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/hsp"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
	"github.com/archipelago-rt/runtime/pkg/registry"
)

// Reserved registry keys. The empty key "" is reserved as the
// registry's own self-reference alias and is rejected as a slot name
// everywhere; the dotted forms are the flattened spellings a
// configuration front-end may stage the function/data halves under
// individually. Implementations may add further names but must leave
// these to the runtime.
const (
	KeyEntryState         = "entry_state"
	KeyEntryStateFunction = "entry_state.function"
	KeyEntryStateData     = "entry_state.data"
	KeyTransition         = "transition"
	KeyTransitionFunction = "transition.function"
	KeyTransitionData     = "transition.data"
	KeySignals            = "signals"
	KeySignalFlags        = "signal.flags"

	// KeySignalHandlerPrefix prefixes the per-handler keys
	// ("signal.handler.<name>").
	KeySignalHandlerPrefix = "signal.handler."

	slotFunction = "function"
	slotData     = "data"
)

// App wraps a *registry.Registry and the well-known keys a running
// system is driven by.
type App struct {
	Registry *registry.Registry
	log      *zap.SugaredLogger
}

// New creates an App with a fresh registry of the given bucket
// capacity.
func New(capacity int, log *zap.SugaredLogger) (*App, errcode.Code) {
	if log == nil {
		log = archlog.Nop()
	}
	reg, status := registry.New(capacity, log)
	if status.IsError() {
		return nil, status
	}
	return &App{Registry: reg, log: log}, errcode.OK
}

// AttachShared attaches a pre-populated shared configuration block:
// if the watch set is non-empty, a signal-management context is
// initialized over it and stored under KeySignals, with its lock-free
// flags block seeded under KeySignalFlags for state functions to poll;
// the root instruction list is then executed in stream order. It
// returns RunInstructions' result for that list.
func (a *App) AttachShared(cfg *registry.SharedConfig) (int, errcode.Code) {
	if cfg == nil {
		return 0, errcode.OK
	}

	if len(cfg.SignalWatchSet) > 0 {
		var sparams params.List
		for i := len(cfg.SignalWatchSet) - 1; i >= 0; i-- {
			sig, ok := cfg.SignalWatchSet[i].(syscall.Signal)
			if !ok {
				return 0, errcode.EValue
			}
			sparams = params.ViewPrepend(sparams, "signal", ptr.Pointer{Flags: ptr.Flags(sig)})
		}

		ifacePtr := context.Wrap(builtin.SignalManagementInterface, ptr.Alloc(func() {}))
		ctx, status := context.Initialize(ifacePtr, sparams)
		if status.IsError() {
			return 0, status
		}
		if status := a.Registry.InsertContext(KeySignals, ctx); status != errcode.OK {
			ctx.Release()
			return 0, status
		}

		flagsVal, status := context.GetSlot(ctx, context.SlotDesignator{Name: "flags"})
		if status != errcode.OK {
			return 0, status
		}
		if status := a.Registry.Seed(KeySignalFlags, flagsVal); status != errcode.OK {
			return 0, status
		}
		a.log.Infow("signal management attached", "signals", len(cfg.SignalWatchSet))
	}

	return a.RunInstructions(cfg.Instructions, false)
}

// RunInstructions executes stream in order against the registry,
// stopping at HALT or at the first instruction whose status is a hard
// error. dryRun is forwarded to every instruction, selecting the
// configuration-validation mode. It returns the number of
// instructions executed and the status that stopped execution
// (errcode.OK if the stream ran to completion or HALT).
func (a *App) RunInstructions(stream []registry.Instruction, dryRun bool) (int, errcode.Code) {
	start := time.Now()
	for i, ins := range stream {
		if ins.Type == registry.HALT {
			a.log.Infow("instruction stream halted", "at", i, "elapsed", time.Since(start))
			return i, errcode.OK
		}
		status := a.Registry.Execute(ins, dryRun)
		if status.IsError() {
			a.log.Errorw("instruction failed", "at", i, "type", ins.Type, "key", ins.Key, "status", status)
			return i, status
		}
		if status.IsAdvisory() {
			a.log.Debugw("instruction advisory status", "at", i, "type", ins.Type, "key", ins.Key, "status", status)
		}
	}
	a.log.Infow("instruction stream completed", "count", len(stream), "elapsed", time.Since(start))
	return len(stream), errcode.OK
}

// resolveFnData reads the {function, data} pair off key's context
// (typically a "parameters"-interface context populated by INIT, so
// get-by-name resolves both slots directly). A missing key, or a
// context with no "function" entry, both report errcode.SoftMiss: the
// former because the key genuinely does not exist, the latter because
// an unset function slot is the well-defined way to express "no entry
// state/transition configured yet".
func (a *App) resolveFnData(key string) (fn, data ptr.Pointer, status errcode.Code) {
	ctx, ok := a.Registry.LookupContext(key)
	if !ok {
		return ptr.Pointer{}, ptr.Pointer{}, errcode.SoftMiss
	}
	fn, status = context.GetSlot(ctx, context.SlotDesignator{Name: slotFunction})
	if status != errcode.OK {
		return ptr.Pointer{}, ptr.Pointer{}, status
	}
	data, _ = context.GetSlot(ctx, context.SlotDesignator{Name: slotData})
	return fn, data, errcode.OK
}

// ResolveState reads key's {function, data} pair and builds an
// hsp.State from it.
func (a *App) ResolveState(key string) (hsp.State, errcode.Code) {
	fn, data, status := a.resolveFnData(key)
	if status != errcode.OK {
		return hsp.State{}, status
	}
	return hsp.State{Fn: unwrapStateFunc(fn), Data: data.Data}, errcode.OK
}

// ResolveTransition is ResolveState's counterpart for the "transition"
// key.
func (a *App) ResolveTransition(key string) (hsp.Transition, errcode.Code) {
	fn, data, status := a.resolveFnData(key)
	if status != errcode.OK {
		return hsp.Transition{}, status
	}
	return hsp.Transition{Fn: unwrapTransitionFunc(fn), Data: data.Data}, errcode.OK
}

func unwrapStateFunc(p ptr.Pointer) hsp.StateFunc {
	if p.Func == nil {
		return nil
	}
	return *(*hsp.StateFunc)(p.Func)
}

func unwrapTransitionFunc(p ptr.Pointer) hsp.TransitionFunc {
	if p.Func == nil {
		return nil
	}
	return *(*hsp.TransitionFunc)(p.Func)
}

// WrapStateFunc lifts an hsp.StateFunc into a Pointer suitable for the
// "function" slot of an entry_state context.
func WrapStateFunc(fn hsp.StateFunc) ptr.Pointer {
	return ptr.Pointer{Func: unsafe.Pointer(&fn), Flags: ptr.FlagFunction}
}

// WrapTransitionFunc lifts an hsp.TransitionFunc into a Pointer
// suitable for the "function" slot of a transition context.
func WrapTransitionFunc(fn hsp.TransitionFunc) ptr.Pointer {
	return ptr.Pointer{Func: unsafe.Pointer(&fn), Flags: ptr.FlagFunction}
}

// Run resolves entry_state/transition and drives the HSP loop to
// completion, returning the number of state invocations performed. An
// entry_state context whose "function" slot exists but is unset is
// treated as the null state (zero steps, errcode.OK) — the empty
// program; a wholly missing entry_state key is reported as
// errcode.SoftMiss, since that indicates the caller never staged one
// at all.
func (a *App) Run() (int, errcode.Code) {
	entry, status := a.ResolveState(KeyEntryState)
	if status != errcode.OK {
		return 0, status
	}
	if entry.IsNull() {
		return 0, errcode.OK
	}
	transition, status := a.ResolveTransition(KeyTransition)
	if status != errcode.OK {
		return 0, status
	}
	return hsp.Run(entry, transition), errcode.OK
}

// Close tears down the registry, cascading finalization through every
// remaining context's refcount destructor.
func (a *App) Close() {
	a.Registry.Close()
}

// ExitCode maps a terminal status to a compact process exit-code
// range: 0 for OK, the advisory value itself for a soft/advisory
// status (1-3), and 64+|code| for a hard error, keeping the mapping
// injective and within a byte for any status this runtime defines.
func ExitCode(status errcode.Code) int {
	switch {
	case status == errcode.OK:
		return 0
	case status.IsAdvisory():
		return int(status)
	default:
		return 64 + int(-status)
	}
}
