package params

import (
	"testing"

	"github.com/archipelago-rt/runtime/pkg/ptr"
)

func TestGetFirstMatchWins(t *testing.T) {
	var list List
	list = StorePrepend(list, "b", ptr.Pointer{})
	list = StorePrepend(list, "a", ptr.Pointer{Flags: 1})
	list = StorePrepend(list, "a", ptr.Pointer{Flags: 2})

	v, ok := Get(list, "a")
	if !ok {
		t.Fatal("expected to find \"a\"")
	}
	if v.Flags != 2 {
		t.Fatalf("got flags %d, want 2 (most recently prepended wins)", v.Flags)
	}

	if _, ok := Get(list, "missing"); ok {
		t.Fatal("expected miss for unknown name")
	}
}

func TestStorePrependBumpsRefCount(t *testing.T) {
	rc := ptr.Alloc(func() {})
	p := ptr.Pointer{RefCount: rc}

	var list List
	list = StorePrepend(list, "x", p)
	if rc.Count() != 2 {
		t.Fatalf("refcount = %d, want 2 after one StorePrepend", rc.Count())
	}

	StoreFree(list, nil)
	if rc.Count() != 1 {
		t.Fatalf("refcount = %d, want 1 after StoreFree", rc.Count())
	}
}

func TestViewPrependDoesNotBumpRefCount(t *testing.T) {
	rc := ptr.Alloc(func() {})
	p := ptr.Pointer{RefCount: rc}

	var list List
	list = ViewPrepend(list, "x", p)
	if rc.Count() != 1 {
		t.Fatalf("refcount = %d, want 1 (view must not bump)", rc.Count())
	}
}

func TestBuildViewOrderAndTail(t *testing.T) {
	var tail List
	tail = StorePrepend(tail, "dyn", ptr.Pointer{})

	sparams := []Node{
		{Name: "a", Value: ptr.Pointer{Flags: 1}},
		{Name: "b", Value: ptr.Pointer{Flags: 2}},
	}

	view := BuildView(sparams, tail)
	if view.Name != "a" || view.Next.Name != "b" || view.Next.Next.Name != "dyn" {
		t.Fatalf("unexpected order: %s -> %s -> %s", view.Name, view.Next.Name, view.Next.Next.Name)
	}
	if view.Next.Next != tail {
		t.Fatal("dynamic tail must be shared, not copied")
	}
}
