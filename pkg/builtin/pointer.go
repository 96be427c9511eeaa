package builtin

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// PointerInterface is the "" (empty interface_key) built-in: it holds
// a single Pointer and exposes offset/metadata views into it. It is
// the interface INIT resolves when interface_key is the empty string
// rather than nil (the "parameters" default) or a registry lookup.
var PointerInterface = &context.Interface{
	Init: pointerInit,
	Get:  pointerGet,
	Set:  pointerSet,
	Act:  pointerAct,
}

func pointerInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	held := ptr.Pointer{}

	if v, ok := params.Get(sparams, "value"); ok {
		held.Data = v.Data
		held.Func = v.Func
	}
	if v, ok := params.Get(sparams, "flags"); ok {
		held.Flags = ptr.Flags(v.Flags)
	}
	if v, ok := params.Get(sparams, "num_elements"); ok {
		held.Element.NumOf = uint64(v.Flags)
	}
	if v, ok := params.Get(sparams, "element_size"); ok {
		held.Element.Size = uint64(v.Flags)
	}
	if v, ok := params.Get(sparams, "element_alignment"); ok {
		held.Element.Alignment = uint64(v.Flags)
	}
	if v, ok := params.Get(sparams, "layout"); ok {
		held.Element = v.Element
	}

	if (held.Element.NumOf == 0) != (held.Data == nil && held.Func == nil) {
		// num_of == 0 must imply a null address and vice versa, for
		// data pointers; function pointers are exempt since they
		// carry no element layout.
		if held.Flags&ptr.FlagFunction == 0 {
			return ptr.Pointer{}, errcode.EValue
		}
	}

	held.RefCount = ptr.Alloc(func() {})
	return held, errcode.OK
}

func elementStride(e ptr.Layout) uint64 {
	return ptr.PaddedSize(e.Size, e.Alignment)
}

func pointerGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	switch slot.Name {
	case "":
		if len(slot.Indices) == 0 {
			return data, errcode.OK
		}
		return offsetInto(data, slot.Indices[0])
	case "flags":
		return ptr.Pointer{Flags: ptr.Flags(data.Flags), RefCount: data.RefCount}, errcode.OK
	case "layout":
		return ptr.Pointer{Element: data.Element, RefCount: data.RefCount}, errcode.OK
	case "num_elements":
		return ptr.Pointer{Flags: ptr.Flags(data.Element.NumOf), RefCount: data.RefCount}, errcode.OK
	case "element_size":
		return ptr.Pointer{Flags: ptr.Flags(data.Element.Size), RefCount: data.RefCount}, errcode.OK
	case "element_alignment":
		return ptr.Pointer{Flags: ptr.Flags(data.Element.Alignment), RefCount: data.RefCount}, errcode.OK
	}
	return ptr.Pointer{}, errcode.SoftMiss
}

func offsetInto(data ptr.Pointer, index int64) (ptr.Pointer, errcode.Code) {
	if index < 0 || uint64(index) >= data.Element.NumOf {
		return ptr.Pointer{}, errcode.EValue
	}
	stride := elementStride(data.Element)
	offset := stride * uint64(index)
	return ptr.Pointer{
		Data:     unsafe.Add(data.Data, offset),
		RefCount: data.RefCount,
		Flags:    data.Flags,
		Element:  ptr.Layout{NumOf: 1, Size: data.Element.Size, Alignment: data.Element.Alignment},
	}, errcode.OK
}

func pointerSet(data *ptr.Pointer, slot context.SlotDesignator, value ptr.Pointer) errcode.Code {
	if slot.Name == "value" && len(slot.Indices) == 0 {
		data.Data = value.Data
		data.Func = value.Func
		data.Flags = value.Flags
		data.Element = value.Element
		return errcode.OK
	}

	if slot.Name != "" || len(slot.Indices) != 1 {
		return errcode.EKey
	}
	if data.Flags&ptr.FlagWritable == 0 {
		return errcode.EMisuse
	}
	if value.Element.Size != data.Element.Size {
		return errcode.EValue
	}

	dst, status := offsetInto(*data, slot.Indices[0])
	if status != errcode.OK {
		return status
	}

	src := unsafe.Slice((*byte)(value.Data), data.Element.Size)
	dstBytes := unsafe.Slice((*byte)(dst.Data), data.Element.Size)
	copy(dstBytes, src)
	return errcode.OK
}

func pointerAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	switch actionSlot.Name {
	case "update":
		v, ok := params.Get(sparams, "value")
		if !ok {
			return ptr.Pointer{}, errcode.EKey
		}
		data.Data = v.Data
		data.Func = v.Func
		data.Flags = v.Flags
		data.Element = v.Element
		return *data, errcode.OK

	case "copy":
		src, ok := params.Get(sparams, "source")
		if !ok {
			return ptr.Pointer{}, errcode.EKey
		}
		count := data.Element.NumOf
		if v, ok := params.Get(sparams, "num_elements"); ok {
			count = uint64(v.Flags)
		}
		if data.Flags&ptr.FlagWritable == 0 {
			return ptr.Pointer{}, errcode.EMisuse
		}
		n := count * elementStride(data.Element)
		dstBytes := unsafe.Slice((*byte)(data.Data), n)
		srcBytes := unsafe.Slice((*byte)(src.Data), n)
		copy(dstBytes, srcBytes)
		return ptr.Pointer{}, errcode.OK
	}
	return ptr.Pointer{}, errcode.EKey
}
