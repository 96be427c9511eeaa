package builtin

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// paramsBox holds a mutable owned parameter list behind a stable
// address, since params.List itself is reassigned on every prepend.
type paramsBox struct {
	list params.List
}

// ParametersInterface stores its init parameters with copy semantics
// and exposes them by name: get by name returns the first matching
// entry; set by name prepends or replaces; act "_" prepends a whole
// sub-list. It is the default init-parameter interface used by INIT
// when no explicit interface is named.
var ParametersInterface = &context.Interface{
	Init: parametersInit,
	Final: func(data ptr.Pointer) {
		box := unwrapParams(data)
		params.StoreFree(box.list, nil)
	},
	Get: parametersGet,
	Set: parametersSet,
	Act: parametersAct,
}

func parametersInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	box := &paramsBox{list: storeCopy(sparams)}
	return wrapParams(box), errcode.OK
}

// storeCopy builds an owned (Store-semantics) copy of list, preserving
// its original order.
func storeCopy(list params.List) params.List {
	var nodes []params.Node
	for n := list; n != nil; n = n.Next {
		nodes = append(nodes, *n)
	}
	var owned params.List
	for i := len(nodes) - 1; i >= 0; i-- {
		owned = params.StorePrepend(owned, nodes[i].Name, nodes[i].Value)
	}
	return owned
}

func wrapParams(box *paramsBox) ptr.Pointer {
	return ptr.Pointer{
		Data:     unsafe.Pointer(box),
		RefCount: ptr.Alloc(func() { params.StoreFree(box.list, nil) }),
	}
}

func unwrapParams(p ptr.Pointer) *paramsBox {
	return (*paramsBox)(p.Data)
}

// UnwrapParamsList exposes the owned params.List held by a context
// built from ParametersInterface, for the registry's dparams_key
// resolution (INIT/ACT's "dynamic tail").
func UnwrapParamsList(c *context.Context) params.List {
	return unwrapParams(c.Data()).list
}

func parametersGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	box := unwrapParams(data)
	v, ok := params.Get(box.list, slot.Name)
	if !ok {
		return ptr.Pointer{}, errcode.SoftMiss
	}
	return v, errcode.OK
}

func parametersSet(data *ptr.Pointer, slot context.SlotDesignator, value ptr.Pointer) errcode.Code {
	box := unwrapParams(*data)
	if n := params.First(box.list, slot.Name); n != nil {
		ptr.Release(n.Value)
		n.Value = ptr.Retain(value)
		return errcode.OK
	}
	box.list = params.StorePrepend(box.list, slot.Name, value)
	return errcode.OK
}

func parametersAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	if actionSlot.Name != "_" {
		return ptr.Pointer{}, errcode.EKey
	}
	box := unwrapParams(*data)
	box.list = params.Append(box.list, storeCopy(sparams))
	return ptr.Pointer{}, errcode.OK
}
