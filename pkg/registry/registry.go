// Package registry implements the root registry context and the
// instruction executor that mutates it: the registry is itself a
// context whose interface is the ordered-hashmap interface, and
// instructions are a small tagged union executed in strict stream
// order.
package registry

import (
	"go.uber.org/zap"

	"github.com/archipelago-rt/runtime/pkg/builtin"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/hashmap"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// builtinInterfaceRefCount backs every process-lifetime built-in
// interface Pointer (parameters, pointer, hashmap, ...): its count
// simply never reaches zero in normal operation, since these
// interfaces live for the process's duration.
var builtinInterfaceRefCount = ptr.Alloc(func() {})

// Registry is the root context graph: a name -> Pointer hashmap (the
// registry is itself a context over the hashmap interface) plus a
// side index from name to the full *context.Context for keys that
// were created by INIT, needed to dispatch Get/Set/Act against them.
// The hashmap alone only ever needs to hold data Pointers, which is
// what external consumers of "the registry as a hashmap" observe.
type Registry struct {
	ctx      *context.Context
	contexts map[string]*context.Context
	log      *zap.SugaredLogger
}

// New allocates a registry with the given hashmap bucket capacity.
func New(capacity int, log *zap.SugaredLogger) (*Registry, errcode.Code) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var sparams params.List
	if capacity > 0 {
		sparams = params.ViewPrepend(nil, "capacity", ptr.Pointer{Flags: ptr.Flags(capacity)})
	}

	ifacePtr := context.Wrap(builtin.HashmapInterface, builtinInterfaceRefCount)
	ctx, status := context.Initialize(ifacePtr, sparams)
	if status.IsError() {
		return nil, status
	}

	return &Registry{ctx: ctx, contexts: map[string]*context.Context{}, log: log}, errcode.OK
}

func (r *Registry) rawMap() *hashmap.Map {
	return builtin.UnwrapMap(r.ctx)
}

// Context returns the registry's own self-referential context (so it
// can itself be handed to another registry's SET_CONTEXT, or treated
// uniformly wherever a *context.Context is expected).
func (r *Registry) Context() *context.Context {
	return r.ctx
}

// Lookup resolves key to its stored Pointer (a borrowed view), with
// the same status convention as hashmap.Get.
func (r *Registry) Lookup(key string) (ptr.Pointer, errcode.Code) {
	return r.rawMap().Get(key)
}

// LookupContext resolves key to the *context.Context created for it
// by a prior INIT, or (nil, false) if key does not name a context
// (either unset, or set to a raw value via SET_VALUE/SET_CONTEXT).
func (r *Registry) LookupContext(key string) (*context.Context, bool) {
	c, ok := r.contexts[key]
	return c, ok
}

// Seed stores a raw Pointer under key without building a context, for
// values staged from outside the instruction stream: plugin interface
// tables an INIT's interface_key will later look up, shared-memory
// blocks, and the like. Fails with Exists if the key is occupied.
func (r *Registry) Seed(key string, value ptr.Pointer) errcode.Code {
	if key == "" {
		return errcode.EMisuse
	}
	return r.rawMap().Set(key, value, hashmap.SetParams{InsertionAllowed: true})
}

// RegisterInterface is Seed specialized to interface tables: it wraps
// iface and stores it under key so instruction streams can name it as
// an interface_key.
func (r *Registry) RegisterInterface(key string, iface *context.Interface) errcode.Code {
	return r.Seed(key, context.Wrap(iface, builtinInterfaceRefCount))
}

// InsertContext stores an externally initialized context under key,
// transferring the caller's hold to the registry — the same
// insert-then-release sequence INIT performs for contexts it builds
// itself.
func (r *Registry) InsertContext(key string, ctx *context.Context) errcode.Code {
	if key == "" {
		return errcode.EMisuse
	}
	status := r.rawMap().Set(key, ctx.Data(), hashmap.SetParams{InsertionAllowed: true})
	if status != errcode.OK {
		return status
	}
	r.contexts[key] = ctx
	ptr.Release(ctx.Data())
	return errcode.OK
}

// Size reports the number of live registry entries.
func (r *Registry) Size() int {
	return r.rawMap().Size()
}

// Close tears down every remaining context in reverse insertion order,
// cascading finalization through the refcount destructors.
func (r *Registry) Close() {
	r.rawMap().Traverse(false, func(string, ptr.Pointer, int) hashmap.TravAction {
		return hashmap.TravAction{Type: hashmap.TravUnset}
	})
	r.contexts = map[string]*context.Context{}
	r.ctx.Release()
}
