package registry

import (
	"github.com/archipelago-rt/runtime/pkg/builtin"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/hashmap"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// Type identifies an Instruction's variant. HALT is a stream
// terminator recognized by the driver (pkg/exe); Execute treats it as
// a no-op.
type Type int

const (
	HALT Type = iota - 1
	NOOP
	INIT
	FINAL
	SetValue
	SetContext
	SetSlot
	Act
)

// Instruction is the tagged union of every registry-mutating
// operation. Only the fields relevant to Type are read.
type Instruction struct {
	Type Type
	Key  string

	// INIT
	InterfaceKey *string // nil => parameters; pointer to "" => pointer-copy; else registry lookup
	DParamsKey   *string
	SParams      []params.Node

	// SET_VALUE / SET_SLOT / SET_CONTEXT / ACT
	Slot       context.SlotDesignator
	Value      ptr.Pointer
	SourceKey  string
	SourceSlot context.SlotDesignator
	ActionSlot context.SlotDesignator
}

// Execute runs one instruction against r. dryRun causes the
// instruction to be logged instead of performed, always returning
// errcode.OK — the configuration-validation mode.
func (r *Registry) Execute(ins Instruction, dryRun bool) errcode.Code {
	if dryRun {
		r.log.Infow("dry-run instruction",
			"type", ins.Type,
			"key", ins.Key,
			"slot", ins.Slot.Name,
			"source_key", ins.SourceKey,
			"source_slot", ins.SourceSlot.Name,
			"action", ins.ActionSlot.Name,
			"sparams", len(ins.SParams))
		return errcode.OK
	}

	switch ins.Type {
	case NOOP, HALT:
		return errcode.OK
	case INIT:
		return r.execInit(ins)
	case FINAL:
		return r.execFinal(ins)
	case SetValue:
		return r.execSetValue(ins)
	case SetContext:
		return r.execSetContext(ins)
	case SetSlot:
		return r.execSetSlot(ins)
	case Act:
		_, status := r.execAct(ins)
		return status
	}
	return errcode.EValue
}

func (r *Registry) execInit(ins Instruction) errcode.Code {
	if ins.Key == "" {
		return errcode.EMisuse
	}
	if _, status := r.rawMap().Get(ins.Key); status == errcode.OK {
		return errcode.Exists
	}

	ifacePtr, status := r.resolveInterface(ins.InterfaceKey)
	if status != errcode.OK {
		return status
	}

	dynamicTail, status := r.resolveDParams(ins.DParamsKey)
	if status != errcode.OK {
		return status
	}

	scratch := params.BuildView(ins.SParams, dynamicTail)

	ctx, status := context.Initialize(ifacePtr, scratch)
	if status.IsError() {
		return status
	}

	// Insert bumps the stored Pointer's refcount to 2 (one for the
	// registry, one still held by this call); release the call-site
	// hold so the registry ends up holding the last reference.
	if setStatus := r.rawMap().Set(ins.Key, ctx.Data(), hashmap.SetParams{InsertionAllowed: true}); setStatus != errcode.OK {
		ctx.Release()
		return setStatus
	}
	r.contexts[ins.Key] = ctx
	ptr.Release(ctx.Data())

	r.log.Debugw("context initialized", "key", ins.Key)
	return status
}

func (r *Registry) resolveInterface(key *string) (ptr.Pointer, errcode.Code) {
	if key == nil {
		return context.Wrap(builtin.ParametersInterface, builtinInterfaceRefCount), errcode.OK
	}
	if *key == "" {
		return context.Wrap(builtin.PointerInterface, builtinInterfaceRefCount), errcode.OK
	}
	return r.rawMap().Get(*key)
}

func (r *Registry) resolveDParams(key *string) (params.List, errcode.Code) {
	if key == nil {
		return nil, errcode.OK
	}
	ctx, ok := r.contexts[*key]
	if !ok {
		return nil, errcode.SoftMiss
	}
	return builtin.UnwrapParamsList(ctx), errcode.OK
}

func (r *Registry) execFinal(ins Instruction) errcode.Code {
	status := r.rawMap().Unset(ins.Key, hashmap.UnsetParams{})
	delete(r.contexts, ins.Key)
	if status != errcode.OK {
		return status
	}
	r.log.Debugw("context finalized", "key", ins.Key)
	return errcode.OK
}

func (r *Registry) execSetValue(ins Instruction) errcode.Code {
	ctx, ok := r.contexts[ins.Key]
	if !ok {
		return errcode.SoftMiss
	}
	return context.SetSlot(ctx, ins.Slot, ins.Value)
}

func (r *Registry) execSetContext(ins Instruction) errcode.Code {
	dst, ok := r.contexts[ins.Key]
	if !ok {
		return errcode.SoftMiss
	}
	src, ok := r.contexts[ins.SourceKey]
	if !ok {
		return errcode.SoftMiss
	}
	return context.SetSlot(dst, ins.Slot, src.Data())
}

func (r *Registry) execSetSlot(ins Instruction) errcode.Code {
	dst, ok := r.contexts[ins.Key]
	if !ok {
		return errcode.SoftMiss
	}
	src, ok := r.contexts[ins.SourceKey]
	if !ok {
		return errcode.SoftMiss
	}
	return context.CopySlot(dst, ins.Slot, src, ins.SourceSlot)
}

func (r *Registry) execAct(ins Instruction) (ptr.Pointer, errcode.Code) {
	ctx, ok := r.contexts[ins.Key]
	if !ok {
		return ptr.Pointer{}, errcode.SoftMiss
	}
	dynamicTail, status := r.resolveDParams(ins.DParamsKey)
	if status != errcode.OK {
		return ptr.Pointer{}, status
	}
	scratch := params.BuildView(ins.SParams, dynamicTail)
	return context.Act(ctx, ins.ActionSlot, scratch)
}
