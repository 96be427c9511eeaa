package builtin

import (
	"testing"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

func newParamsContext(t *testing.T, sparams params.List) *context.Context {
	t.Helper()
	ifacePtr := context.Wrap(ParametersInterface, ptr.Alloc(func() {}))
	ctx, status := context.Initialize(ifacePtr, sparams)
	if status.IsError() {
		t.Fatalf("Initialize: %v", status)
	}
	return ctx
}

// TestParametersStoreOutlivesCallArguments verifies the copy
// semantics: the stored configuration keeps its values retained past
// the init call, independent of the scratch view it was built from.
func TestParametersStoreOutlivesCallArguments(t *testing.T) {
	rc := ptr.Alloc(func() {})
	sparams := params.ViewPrepend(nil, "a", ptr.Pointer{Flags: 7, RefCount: rc})

	ctx := newParamsContext(t, sparams)
	if rc.Count() != 2 {
		t.Fatalf("refcount after init = %d, want 2 (stored copy retains)", rc.Count())
	}

	v, status := context.GetSlot(ctx, context.SlotDesignator{Name: "a"})
	if status != errcode.OK || v.Flags != 7 {
		t.Fatalf("get a = (%v, %v), want (flags=7, OK)", v.Flags, status)
	}

	ctx.Release()
	if rc.Count() != 1 {
		t.Fatalf("refcount after finalize = %d, want 1 (stored copy released)", rc.Count())
	}
}

func TestParametersGetFirstMatchWins(t *testing.T) {
	sparams := params.BuildView([]params.Node{
		{Name: "a", Value: ptr.Pointer{Flags: 1}},
		{Name: "a", Value: ptr.Pointer{Flags: 2}},
	}, nil)
	ctx := newParamsContext(t, sparams)
	defer ctx.Release()

	v, status := context.GetSlot(ctx, context.SlotDesignator{Name: "a"})
	if status != errcode.OK || v.Flags != 1 {
		t.Fatalf("get a = (%v, %v), want (flags=1, OK)", v.Flags, status)
	}
	if _, status := context.GetSlot(ctx, context.SlotDesignator{Name: "missing"}); status != errcode.SoftMiss {
		t.Fatalf("get missing = %v, want SoftMiss", status)
	}
}

// TestParametersSetReplacesOrPrepends covers both Set branches: an
// existing name is replaced in place, an unknown one is prepended.
func TestParametersSetReplacesOrPrepends(t *testing.T) {
	sparams := params.ViewPrepend(nil, "a", ptr.Pointer{Flags: 1})
	ctx := newParamsContext(t, sparams)
	defer ctx.Release()

	if status := context.SetSlot(ctx, context.SlotDesignator{Name: "a"}, ptr.Pointer{Flags: 9}); status != errcode.OK {
		t.Fatalf("set a: %v", status)
	}
	v, _ := context.GetSlot(ctx, context.SlotDesignator{Name: "a"})
	if v.Flags != 9 {
		t.Fatalf("a after replace = %d, want 9", v.Flags)
	}

	if status := context.SetSlot(ctx, context.SlotDesignator{Name: "b"}, ptr.Pointer{Flags: 3}); status != errcode.OK {
		t.Fatalf("set b: %v", status)
	}
	v, status := context.GetSlot(ctx, context.SlotDesignator{Name: "b"})
	if status != errcode.OK || v.Flags != 3 {
		t.Fatalf("get b = (%v, %v), want (flags=3, OK)", v.Flags, status)
	}
}

// TestParametersActPrependsSublist verifies act "_" prepends a whole
// sub-list, and that any other action name is an unknown key.
func TestParametersActPrependsSublist(t *testing.T) {
	ctx := newParamsContext(t, params.ViewPrepend(nil, "old", ptr.Pointer{Flags: 1}))
	defer ctx.Release()

	sub := params.BuildView([]params.Node{
		{Name: "new1", Value: ptr.Pointer{Flags: 10}},
		{Name: "new2", Value: ptr.Pointer{Flags: 20}},
	}, nil)
	if _, status := context.Act(ctx, context.SlotDesignator{Name: "_"}, sub); status != errcode.OK {
		t.Fatalf("act _: %v", status)
	}

	for name, want := range map[string]ptr.Flags{"old": 1, "new1": 10, "new2": 20} {
		v, status := context.GetSlot(ctx, context.SlotDesignator{Name: name})
		if status != errcode.OK || v.Flags != want {
			t.Fatalf("get %s = (%v, %v), want (flags=%d, OK)", name, v.Flags, status, want)
		}
	}

	if _, status := context.Act(ctx, context.SlotDesignator{Name: "unknown"}, nil); status != errcode.EKey {
		t.Fatalf("act unknown = %v, want EKey", status)
	}
}
