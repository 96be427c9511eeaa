// Package params implements the immutable (name, Pointer) linked list
// used for context init and act arguments.
package params

import "github.com/archipelago-rt/runtime/pkg/ptr"

// Node is one entry of a parameter list. Names are case-sensitive and
// not unique; lookup returns the first match encountered while
// walking from the head.
type Node struct {
	Next  *Node
	Name  string
	Value ptr.Pointer
}

// List is the head of a parameter list, or nil for an empty list.
type List = *Node

// First returns the first node in list whose Name equals name, or nil.
func First(list List, name string) *Node {
	for n := list; n != nil; n = n.Next {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Get returns the value of the first node named name, and whether it
// was found.
func Get(list List, name string) (ptr.Pointer, bool) {
	n := First(list, name)
	if n == nil {
		return ptr.Pointer{}, false
	}
	return n.Value, true
}

// StorePrepend builds an owned copy of a single (name, value) pair
// prepended onto tail: the name string is duplicated (trivial in Go,
// strings are immutable) and the value's reference count is bumped —
// the "copy semantics" flavor used by interfaces that retain
// configuration past the call that supplied it.
func StorePrepend(tail List, name string, value ptr.Pointer) *Node {
	return &Node{
		Next:  tail,
		Name:  name,
		Value: ptr.Retain(value),
	}
}

// StoreFree releases every node's retained value down to (but not
// including) stop, for use when discarding an owned list built with
// StorePrepend.
func StoreFree(list List, stop List) {
	for n := list; n != stop && n != nil; {
		next := n.Next
		ptr.Release(n.Value)
		n = next
	}
}

// ViewPrepend builds a single non-owning node prepended onto tail: the
// name and the value's reference count are both borrowed from the
// caller. The resulting list is valid only for the synchronous
// duration of whatever call it was built for — the "view semantics"
// used by the executor's per-instruction scratch lists.
func ViewPrepend(tail List, name string, value ptr.Pointer) *Node {
	return &Node{Next: tail, Name: name, Value: value}
}

// ViewFree discards the view nodes down to (but not including) stop.
// It never touches reference counts, since a view never owns one.
func ViewFree(list List, stop List) {
	for n := list; n != stop && n != nil; {
		next := n.Next
		n = next
	}
}

// Concat attaches back onto the tail of front, mutating front's last
// node's Next pointer, and returns front (or back, if front is nil).
// front must not be shared with any other list, since its tail link
// is rewritten in place.
func Concat(front, back List) List {
	if front == nil {
		return back
	}
	n := front
	for n.Next != nil {
		n = n.Next
	}
	n.Next = back
	return front
}

// Append is an alias of Concat read as "attach toPrepend onto the
// front of base", matching the built-in parameters interface's act
// "_" operation, which prepends a whole sub-list.
func Append(base, toPrepend List) List {
	return Concat(toPrepend, base)
}

// BuildView constructs a scratch view list by prepending each entry of
// sparams (in order, so the list ends up in sparams' order with head
// = sparams[0]) onto dynamicTail. This is exactly the executor's
// per-instruction construction: static parameters are borrowed nodes;
// dynamicTail (if any) is untouched and outlives the call.
func BuildView(sparams []Node, dynamicTail List) List {
	var head List = dynamicTail
	for i := len(sparams) - 1; i >= 0; i-- {
		head = ViewPrepend(head, sparams[i].Name, sparams[i].Value)
	}
	return head
}
