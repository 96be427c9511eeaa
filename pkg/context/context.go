// Package context implements the uniform context object and interface
// protocol (vtable-as-value): every context in the runtime — whether
// it is the registry itself, a user value, or a thread-group — is
// initialized, read, written, and acted on through the same
// five-function Interface.
package context

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// SlotDesignator selects a facet of a context's data. The zero value
// (empty Name, no Indices) is the "whole context" designator.
type SlotDesignator struct {
	Name    string
	Indices []int64
}

// IsWhole reports whether d designates the context's entire data
// Pointer rather than a named/indexed facet.
func (d SlotDesignator) IsWhole() bool {
	return d.Name == "" && len(d.Indices) == 0
}

// Index0 builds a single-index designator, the common case for
// array-like interfaces (pointer, hashmap).
func Index0(name string, index int64) SlotDesignator {
	return SlotDesignator{Name: name, Indices: []int64{index}}
}

// InitFunc allocates the concrete object behind a context and
// produces the Pointer describing its public facet. A negative status
// is a hard failure; on failure the returned Pointer is ignored and
// any resources the call allocated must already be rolled back.
type InitFunc func(sparams params.List) (ptr.Pointer, errcode.Code)

// FinalFunc destroys resources owned by the context. It never fails.
type FinalFunc func(data ptr.Pointer)

// GetFunc reads a named/indexed facet of data.
type GetFunc func(data ptr.Pointer, slot SlotDesignator) (ptr.Pointer, errcode.Code)

// SetFunc writes or replaces a named/indexed facet of data. It
// receives a pointer to the context's stored data Pointer so that an
// interface whose slot semantics replace the whole public value (e.g.
// the built-in "pointer" interface's "value" slot) can do so in
// place; interfaces that only touch a nested structure reached
// through data.Data are free to ignore the indirection.
type SetFunc func(data *ptr.Pointer, slot SlotDesignator, value ptr.Pointer) errcode.Code

// ActFunc performs a named side-effecting operation. Like SetFunc, it
// receives a pointer to the stored data Pointer for actions that
// replace the whole value (e.g. "update").
type ActFunc func(data *ptr.Pointer, actionSlot SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code)

// Interface is the immutable, five-operation vtable every context
// conforms to. Any field may be nil; calling through a nil field
// yields errcode.EInterface. Interfaces are deliberately a plain
// struct of function values rather than a Go interface type: the
// runtime passes interfaces around and stores them as data (loaded
// from plugins), not as compile-time implementations.
type Interface struct {
	Init  InitFunc
	Final FinalFunc
	Get   GetFunc
	Set   SetFunc
	Act   ActFunc
}

// Wrap lifts iface into a ptr.Pointer so it can flow through the same
// channels as any other value (stored in the registry, passed as an
// INIT interface_key lookup result). rc governs the interface's own
// lifetime; it is typically a process-lifetime singleton for built-in
// interfaces (refcount never reaches zero) or a plugin-owned counter
// for dynamically loaded ones.
func Wrap(iface *Interface, rc *ptr.RefCount) ptr.Pointer {
	return ptr.Pointer{Data: unsafe.Pointer(iface), RefCount: rc}
}

// Unwrap recovers the *Interface from a Pointer built by Wrap. It
// returns nil if p does not wrap an interface.
func Unwrap(p ptr.Pointer) *Interface {
	if p.Data == nil {
		return nil
	}
	return (*Interface)(p.Data)
}

// Context is the runtime wrapper around one instantiated object: the
// interface it was built from and the data Pointer that interface
// populated. The wrapper swaps the data Pointer's reference count for
// one it owns, so that all outstanding holders of the data Pointer
// collectively keep the context (and, through it, the interface
// attachment) alive.
type Context struct {
	iface            ptr.Pointer
	data             ptr.Pointer
	originalRefCount *ptr.RefCount
}

// Initialize builds a new Context from ifacePtr (a Pointer produced by
// Wrap, or resolved by registry lookup) and a parameter list. On
// success it returns the Context with its data Pointer's reference
// count already swapped to the one that drives finalization; on
// failure it returns (nil, status) without retaining ifacePtr.
func Initialize(ifacePtr ptr.Pointer, sparams params.List) (*Context, errcode.Code) {
	iface := Unwrap(ifacePtr)
	if iface == nil || iface.Init == nil {
		return nil, errcode.EInterface
	}

	data, status := iface.Init(sparams)
	if status.IsError() {
		return nil, status
	}

	retainedIface := ptr.Retain(ifacePtr)
	originalRC := data.RefCount

	ctx := &Context{iface: retainedIface, originalRefCount: originalRC}
	ctx.data = data
	ctx.data.RefCount = ptr.Alloc(func() {
		// (1) restore the data Pointer's original refcount handle
		finalData := data
		finalData.RefCount = originalRC
		// (2) run final, if any
		if iface.Final != nil {
			iface.Final(finalData)
		}
		// (3) release the interface attachment
		ptr.Release(ctx.iface)
		// (4) the wrapper itself is reclaimed by the garbage collector
	})

	return ctx, status
}

// Data returns the context's current data Pointer (a borrowed view —
// callers that want to outlive this call must ptr.Retain it).
func (c *Context) Data() ptr.Pointer {
	return c.data
}

// Retain returns a Pointer to c's data with its reference count
// bumped, conveying ownership to the caller.
func (c *Context) Retain() ptr.Pointer {
	return ptr.Retain(c.data)
}

// Release drops one hold on c's data. It returns true if this call
// drove the context to finalization (Final ran and the interface was
// released); the Context must not be used afterwards in that case.
func (c *Context) Release() bool {
	return ptr.Release(c.data)
}

// GetSlot reads slot from c. The whole-context designator returns c's
// data Pointer directly without invoking the interface's Get.
func GetSlot(c *Context, slot SlotDesignator) (ptr.Pointer, errcode.Code) {
	if slot.IsWhole() {
		return c.data, errcode.OK
	}
	iface := Unwrap(c.iface)
	if iface == nil || iface.Get == nil {
		return ptr.Pointer{}, errcode.EInterface
	}
	return iface.Get(c.data, slot)
}

// SetSlot writes value to slot on c. The whole-context designator is
// forbidden: whole-context replacement is not a valid operation.
func SetSlot(c *Context, slot SlotDesignator, value ptr.Pointer) errcode.Code {
	if slot.IsWhole() {
		return errcode.EMisuse
	}
	iface := Unwrap(c.iface)
	if iface == nil || iface.Set == nil {
		return errcode.EInterface
	}
	return iface.Set(&c.data, slot, value)
}

// CopySlot implements src.get(srcSlot) -> dst.set(dstSlot, _) with
// early error propagation.
func CopySlot(dst *Context, dstSlot SlotDesignator, src *Context, srcSlot SlotDesignator) errcode.Code {
	v, status := GetSlot(src, srcSlot)
	if status != errcode.OK {
		return status
	}
	return SetSlot(dst, dstSlot, v)
}

// Act invokes the named action on c with the given parameter list.
func Act(c *Context, actionSlot SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	iface := Unwrap(c.iface)
	if iface == nil || iface.Act == nil {
		return ptr.Pointer{}, errcode.EInterface
	}
	return iface.Act(&c.data, actionSlot, sparams)
}
