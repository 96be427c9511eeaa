// Package builtin implements the seven standard interfaces every
// minimal system needs: parameters, pointer, hashmap, library, memory,
// thread_group, and signal_management. Each is a context.Interface
// value, constructed once and shared (their own reference count never
// needs to reach zero, since they are part of the runtime rather than
// plugin-loaded).
package builtin

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/hashmap"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

const defaultHashmapCapacity = 64

// HashmapInterface wraps pkg/hashmap.Map behind the context protocol:
// init recognizes {params, capacity}; get is map lookup; set is
// insert/update if the slot has a zero index, remove if value is null.
var HashmapInterface = &context.Interface{
	Init: hashmapInit,
	Final: func(data ptr.Pointer) {
		unwrapHashmap(data).Close()
	},
	Get: hashmapGet,
	Set: hashmapSet,
}

func hashmapInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	capacity := defaultHashmapCapacity
	if v, ok := params.Get(sparams, "capacity"); ok {
		capacity = int(v.Flags)
	}

	m, status := hashmap.New(capacity)
	if status != errcode.OK {
		return ptr.Pointer{}, status
	}

	if initList, ok := params.Get(sparams, "params"); ok {
		for n := (params.List)(initList.Data); n != nil; n = n.Next {
			if status := m.Set(n.Name, n.Value, hashmap.SetParams{InsertionAllowed: true, UpdateAllowed: true}); status != errcode.OK {
				m.Close()
				return ptr.Pointer{}, status
			}
		}
	}

	return wrapHashmap(m), errcode.OK
}

// wrapHashmap lifts a *hashmap.Map into a ptr.Pointer carrying a
// dedicated reference count whose destructor releases the map.
func wrapHashmap(m *hashmap.Map) ptr.Pointer {
	return ptr.Pointer{
		Data:     unsafe.Pointer(m),
		RefCount: ptr.Alloc(func() { m.Close() }),
	}
}

// unwrapHashmap recovers the *hashmap.Map from a Pointer built by
// wrapHashmap (or from HashmapInterface's data Pointer).
func unwrapHashmap(p ptr.Pointer) *hashmap.Map {
	return (*hashmap.Map)(p.Data)
}

func hashmapGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	if len(slot.Indices) != 0 {
		return ptr.Pointer{}, errcode.EMisuse
	}
	return unwrapHashmap(data).Get(slot.Name)
}

// hashmapSet inserts, updates, or removes slot.Name. A bare-name slot
// is insert-only; updating an existing key requires an explicit zero
// index. A null value (the zero Pointer) means "remove".
func hashmapSet(data *ptr.Pointer, slot context.SlotDesignator, value ptr.Pointer) errcode.Code {
	if len(slot.Indices) > 1 {
		return errcode.EMisuse
	}
	if len(slot.Indices) == 1 && slot.Indices[0] != 0 {
		return errcode.EMisuse
	}
	m := unwrapHashmap(*data)
	if value == (ptr.Pointer{}) {
		return m.Unset(slot.Name, hashmap.UnsetParams{})
	}
	return m.Set(slot.Name, value, hashmap.SetParams{
		InsertionAllowed: true,
		UpdateAllowed:    len(slot.Indices) != 0,
	})
}

// UnwrapMap exposes the underlying *hashmap.Map of a context built
// from HashmapInterface, for privileged callers (the registry) that
// work on the map directly — Get, Set with explicit SetParams, Unset
// and Traverse — rather than through the Get/Set slot protocol.
func UnwrapMap(c *context.Context) *hashmap.Map {
	return unwrapHashmap(c.Data())
}
