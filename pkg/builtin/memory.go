package builtin

import (
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// MemoryBackend is the pluggable allocate/free/map/unmap quartet the
// "memory" interface requires of its domain plug-in (OpenCL, SDL, or
// plain host heap). A backend's Map/Unmap pair may be no-ops
// for an already-addressable allocation (the heap backend below is
// exactly that case); they exist for backends whose allocation is not
// directly addressable from host code (e.g. a GPU buffer) until mapped.
type MemoryBackend struct {
	Name string

	Allocate func(layout ptr.Layout) (mapData unsafe.Pointer, status errcode.Code)
	Free     func(mapData unsafe.Pointer)
	Map      func(mapData unsafe.Pointer, offset uint64) (addr unsafe.Pointer, status errcode.Code)
	Unmap    func(mapData unsafe.Pointer)
}

// HeapBackend allocates plain Go heap memory: Map/Unmap are identity
// operations since heap memory is always host-addressable. This is
// the default backend used when no "interface" init parameter is
// given.
var HeapBackend = &MemoryBackend{
	Name: "heap",
	Allocate: func(layout ptr.Layout) (unsafe.Pointer, errcode.Code) {
		n := layout.NumOf * ptr.PaddedSize(layout.Size, layout.Alignment)
		if n == 0 {
			return nil, errcode.OK
		}
		buf := make([]byte, n)
		return unsafe.Pointer(&buf[0]), errcode.OK
	},
	Free: func(unsafe.Pointer) {},
	Map: func(mapData unsafe.Pointer, offset uint64) (unsafe.Pointer, errcode.Code) {
		return unsafe.Add(mapData, offset), errcode.OK
	},
	Unmap: func(unsafe.Pointer) {},
}

func wrapBackend(b *MemoryBackend) ptr.Pointer {
	return ptr.Pointer{Data: unsafe.Pointer(b), RefCount: ptr.Alloc(func() {})}
}

func unwrapBackend(p ptr.Pointer) *MemoryBackend {
	if p.Data == nil {
		return HeapBackend
	}
	return (*MemoryBackend)(p.Data)
}

type memoryAllocation struct {
	backend *MemoryBackend
	mapData unsafe.Pointer
	layout  ptr.Layout
}

// MemoryInterface wraps an allocation produced by a pluggable
// MemoryBackend: init recognizes {interface, layout} (an "alloc_data"
// parameter is not read; Allocate receives only the layout); get
// exposes {interface, allocation, layout, num_elements, element_size,
// element_alignment}.
var MemoryInterface = &context.Interface{
	Init: memoryInit,
	Final: func(data ptr.Pointer) {
		a := unwrapMemory(data)
		a.backend.Free(a.mapData)
	},
	Get: memoryGet,
	Act: memoryAct,
}

func memoryInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	backend := HeapBackend
	if v, ok := params.Get(sparams, "interface"); ok {
		backend = unwrapBackend(v)
	}
	if backend == nil || backend.Allocate == nil || backend.Free == nil {
		return ptr.Pointer{}, errcode.EInterface
	}

	var layout ptr.Layout
	if v, ok := params.Get(sparams, "layout"); ok {
		layout = v.Element
	}

	mapData, status := backend.Allocate(layout)
	if status.IsError() {
		return ptr.Pointer{}, status
	}

	a := &memoryAllocation{backend: backend, mapData: mapData, layout: layout}
	return ptr.Pointer{
		Data:     unsafe.Pointer(a),
		RefCount: ptr.Alloc(func() {}),
		Element:  layout,
	}, errcode.OK
}

func unwrapMemory(data ptr.Pointer) *memoryAllocation {
	return (*memoryAllocation)(data.Data)
}

func memoryGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	a := unwrapMemory(data)
	switch slot.Name {
	case "interface":
		return wrapBackend(a.backend), errcode.OK
	case "allocation":
		return ptr.Pointer{Data: a.mapData, Element: a.layout}, errcode.OK
	case "layout":
		return ptr.Pointer{Element: a.layout}, errcode.OK
	case "num_elements":
		return ptr.Pointer{Flags: ptr.Flags(a.layout.NumOf)}, errcode.OK
	case "element_size":
		return ptr.Pointer{Flags: ptr.Flags(a.layout.Size)}, errcode.OK
	case "element_alignment":
		return ptr.Pointer{Flags: ptr.Flags(a.layout.Alignment)}, errcode.OK
	}
	return ptr.Pointer{}, errcode.SoftMiss
}

// memoryAct implements the "copy" action by delegating to
// MapCopyUnmap against a source allocation named by the "source"
// parameter.
func memoryAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	if actionSlot.Name != "copy" {
		return ptr.Pointer{}, errcode.EKey
	}
	dst := unwrapMemory(*data)
	srcVal, ok := params.Get(sparams, "source")
	if !ok {
		return ptr.Pointer{}, errcode.EKey
	}
	src := unwrapMemory(srcVal)

	if dst.layout.Size != src.layout.Size || dst.layout.Alignment != src.layout.Alignment {
		return ptr.Pointer{}, errcode.EValue
	}

	var dstOff, srcOff uint64
	if v, ok := params.Get(sparams, "dst_offset"); ok {
		dstOff = uint64(v.Flags)
	}
	if v, ok := params.Get(sparams, "src_offset"); ok {
		srcOff = uint64(v.Flags)
	}
	dstTotal := dst.layout.NumOf * ptr.PaddedSize(dst.layout.Size, dst.layout.Alignment)
	srcTotal := src.layout.NumOf * ptr.PaddedSize(src.layout.Size, src.layout.Alignment)
	n := dstTotal
	if v, ok := params.Get(sparams, "num_bytes"); ok {
		n = uint64(v.Flags)
	}
	if dstOff+n > dstTotal || srcOff+n > srcTotal {
		return ptr.Pointer{}, errcode.EMisuse
	}

	status := MapCopyUnmap(dst.backend, dst.mapData, dstOff, src.backend, src.mapData, srcOff, n)
	return ptr.Pointer{}, status
}

// MapCopyUnmap maps dst and src (a single mapping if they share the
// same backing mapData), memcpy's n bytes from src+srcOff to
// dst+dstOff, and unmaps both in reverse order.
func MapCopyUnmap(dstBackend *MemoryBackend, dstMapData unsafe.Pointer, dstOff uint64, srcBackend *MemoryBackend, srcMapData unsafe.Pointer, srcOff uint64, n uint64) errcode.Code {
	if n == 0 {
		return errcode.OK
	}
	if dstBackend == nil || srcBackend == nil || dstBackend.Map == nil || srcBackend.Map == nil {
		return errcode.EInterface
	}

	dstAddr, status := dstBackend.Map(dstMapData, dstOff)
	if status.IsError() {
		return status
	}
	defer dstBackend.Unmap(dstMapData)

	if dstMapData == srcMapData && dstBackend == srcBackend {
		srcAddr := unsafe.Add(dstAddr, int64(srcOff)-int64(dstOff))
		copyBytes(dstAddr, srcAddr, n)
		return errcode.OK
	}

	srcAddr, status := srcBackend.Map(srcMapData, srcOff)
	if status.IsError() {
		return status
	}
	defer srcBackend.Unmap(srcMapData)

	copyBytes(dstAddr, srcAddr, n)
	return errcode.OK
}

func copyBytes(dst, src unsafe.Pointer, n uint64) {
	dstBytes := unsafe.Slice((*byte)(dst), n)
	srcBytes := unsafe.Slice((*byte)(src), n)
	copy(dstBytes, srcBytes)
}
