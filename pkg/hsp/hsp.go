// Package hsp implements the hierarchical state processor: a minimal
// interpreter that runs a user-defined state graph until a transition
// yields a null next-state. Complex control structure lives entirely
// in the graph the caller plugs in; this package only guarantees
// ordering and termination.
package hsp

// StateFunc executes one state, given its data.
type StateFunc func(data any)

// State is a function/data pair: the current (or next) node of the
// state graph.
type State struct {
	Fn   StateFunc
	Data any
}

// IsNull reports whether s terminates the HSP loop: a null function in
// the returned next-state terminates the machine.
func (s State) IsNull() bool { return s.Fn == nil }

// TransitionFunc is invoked after current's function returns; it
// writes the next state the loop should run, given the state that
// just ran and the transition's own data.
type TransitionFunc func(current State, data any) State

// Transition is a function/data pair supplying the loop's
// state-to-state edge.
type Transition struct {
	Fn   TransitionFunc
	Data any
}

// Run executes the HSP loop starting from entry, using transition to
// compute each next state, until a state with a nil function is
// reached. It returns the number of state invocations performed.
//
//  1. invoke current.Fn(current.Data)
//  2. next := transition.Fn(current, transition.Data)
//  3. if next.IsNull(), stop; otherwise current = next and loop.
func Run(entry State, transition Transition) int {
	current := entry
	steps := 0
	for !current.IsNull() {
		current.Fn(current.Data)
		steps++
		current = transition.Fn(current, transition.Data)
	}
	return steps
}

// PreTransitionFunc runs before the about-to-execute state's function.
// It may redirect execution by returning a different State than
// about; HSP then jumps straight to the returned state without
// running about's function. Returning about unchanged lets the state
// run normally.
type PreTransitionFunc func(about State, data any) State

// PostTransitionFunc computes the next state after the just-run
// state's function returned, exactly like an ordinary TransitionFunc.
type PostTransitionFunc func(ran State, data any) State

// AttachTransition composes a pre-transition and a post-transition
// into the single TransitionFunc slot Run expects. The pre transition
// is given the chance to redirect before Run would otherwise invoke
// the state function again on the next loop iteration; because Run
// already ran "ran" by the time the composed transition fires,
// attachment here models the pre-check for the *next* state about to
// be entered: the returned Transition's Fn first asks pre whether to
// redirect away from the post-computed next state, then returns
// whichever state wins.
func AttachTransition(pre PreTransitionFunc, post Transition) Transition {
	return Transition{
		Fn: func(current State, data any) State {
			next := post.Fn(current, post.Data)
			if pre == nil {
				return next
			}
			return pre(next, data)
		},
		Data: nil,
	}
}
