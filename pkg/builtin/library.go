package builtin

import (
	"plugin"
	"sync"
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// LibraryInterface wraps a dynamically loaded library handle: init
// opens the library named by the "pathname" parameter; get by symbol
// name resolves it, applying any attributes staged by a preceding act
// call on that same symbol name. Go's closest analog of dlopen is the
// standard plugin package (cgo, .so-only, no Windows support).
var LibraryInterface = &context.Interface{
	Init: libraryInit,
	Get:  libraryGet,
	Act:  libraryAct,
}

type stagedAttrs struct {
	flags  ptr.Flags
	layout ptr.Layout
}

type libraryData struct {
	plug *plugin.Plugin

	mu     sync.Mutex
	staged map[string]stagedAttrs
}

func libraryInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	pathVal, ok := params.Get(sparams, "pathname")
	if !ok {
		return ptr.Pointer{}, errcode.EValue
	}
	pathname := ptr.ToString(pathVal)
	if pathname == "" {
		return ptr.Pointer{}, errcode.EValue
	}

	// lazy/global are accepted for protocol fidelity but have no
	// effect: plugin.Open always resolves eagerly and there is no Go
	// equivalent of RTLD_GLOBAL.
	_, _ = params.Get(sparams, "lazy")
	_, _ = params.Get(sparams, "global")

	p, err := plugin.Open(pathname)
	if err != nil {
		return ptr.Pointer{}, errcode.EResource
	}

	ld := &libraryData{plug: p, staged: map[string]stagedAttrs{}}
	return ptr.Pointer{
		Data:     unsafe.Pointer(ld),
		RefCount: ptr.Alloc(func() {}),
	}, errcode.OK
}

func unwrapLibrary(data ptr.Pointer) *libraryData {
	return (*libraryData)(data.Data)
}

// libraryGet resolves slot.Name as a symbol in the loaded library.
// Attributes staged by a prior Act on the same name are applied to
// the returned Pointer and then cleared unconditionally: staged
// attributes are consumed regardless of whether this get succeeds.
func libraryGet(data ptr.Pointer, slot context.SlotDesignator) (ptr.Pointer, errcode.Code) {
	ld := unwrapLibrary(data)
	if slot.Name == "" {
		return ptr.Pointer{}, errcode.EKey
	}

	ld.mu.Lock()
	attrs, hadStaged := ld.staged[slot.Name]
	delete(ld.staged, slot.Name)
	ld.mu.Unlock()

	sym, err := ld.plug.Lookup(slot.Name)
	if err != nil {
		return ptr.Pointer{}, errcode.SoftMiss
	}

	result := ptr.Pointer{
		Func:  unsafe.Pointer(&sym),
		Flags: ptr.FlagFunction,
	}
	if hadStaged {
		result.Flags = attrs.flags
		result.Element = attrs.layout
	}
	return result, errcode.OK
}

// libraryAct stages {flags, layout} attributes for the NEXT get of
// the symbol named by actionSlot.Name. Staging any other symbol
// leaves previously staged ones untouched.
func libraryAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	ld := unwrapLibrary(*data)
	if actionSlot.Name == "" {
		return ptr.Pointer{}, errcode.EKey
	}

	attrs := stagedAttrs{}
	if v, ok := params.Get(sparams, "flags"); ok {
		attrs.flags = ptr.Flags(v.Flags)
	}
	if v, ok := params.Get(sparams, "layout"); ok {
		attrs.layout = v.Element
	}

	ld.mu.Lock()
	ld.staged[actionSlot.Name] = attrs
	ld.mu.Unlock()

	return ptr.Pointer{}, errcode.OK
}
