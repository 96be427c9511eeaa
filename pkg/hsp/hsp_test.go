package hsp

import "testing"

// TestRunCountsDown verifies that the loop terminates iff the
// transition produces a null next-state, and executes exactly one
// state call per iteration.
func TestRunCountsDown(t *testing.T) {
	var calls []int
	entry := State{
		Fn:   func(data any) { calls = append(calls, data.(int)) },
		Data: 3,
	}
	transition := Transition{
		Fn: func(current State, data any) State {
			n := current.Data.(int)
			if n == 0 {
				return State{}
			}
			return State{Fn: entry.Fn, Data: n - 1}
		},
	}

	steps := Run(entry, transition)

	want := []int{3, 2, 1, 0}
	if steps != len(want) {
		t.Fatalf("steps = %d, want %d", steps, len(want))
	}
	for i, w := range want {
		if calls[i] != w {
			t.Fatalf("calls[%d] = %d, want %d", i, calls[i], w)
		}
	}
}

// TestRunNullEntryDoesNothing covers the "zero iterations" edge case.
func TestRunNullEntryDoesNothing(t *testing.T) {
	ran := false
	entry := State{Fn: nil}
	transition := Transition{Fn: func(State, any) State {
		ran = true
		return State{}
	}}

	steps := Run(entry, transition)
	if steps != 0 {
		t.Fatalf("steps = %d, want 0", steps)
	}
	if ran {
		t.Fatal("transition must not run when entry is already null")
	}
}

// TestAttachTransitionRedirects verifies that the pre-transition can
// override the post-transition's computed next state.
func TestAttachTransitionRedirects(t *testing.T) {
	redirectTarget := State{Fn: func(any) {}, Data: "redirected"}

	post := Transition{Fn: func(current State, data any) State {
		return State{Fn: func(any) {}, Data: "normal-next"}
	}}
	pre := func(about State, data any) State {
		if about.Data == "normal-next" {
			return redirectTarget
		}
		return about
	}

	attached := AttachTransition(pre, post)
	next := attached.Fn(State{}, nil)
	if next.Data != "redirected" {
		t.Fatalf("next.Data = %v, want redirected", next.Data)
	}
}

// TestAttachTransitionNoPreIsIdentity covers the pre == nil case.
func TestAttachTransitionNoPreIsIdentity(t *testing.T) {
	post := Transition{Fn: func(current State, data any) State {
		return State{Fn: func(any) {}, Data: 42}
	}}
	attached := AttachTransition(nil, post)
	next := attached.Fn(State{}, nil)
	if next.Data != 42 {
		t.Fatalf("next.Data = %v, want 42", next.Data)
	}
}
