// Package errcode defines the fixed status-code taxonomy shared by
// every layer of the runtime: negative values are hard errors, zero is
// success, and small positive values are advisory (soft-miss, already
// exists, vetoed).
package errcode

import "fmt"

// Code is a protocol-level status. It implements error so it composes
// with fmt.Errorf's %w, while still being comparable with == for the
// control-flow cases callers are meant to switch on.
type Code int

const (
	// OK indicates success.
	OK Code = 0

	// SoftMiss indicates a lookup did not find its target. Callers
	// may treat this as control flow rather than a failure.
	SoftMiss Code = 1
	// Exists indicates INIT collided with an existing registry key.
	Exists Code = 2
	// Vetoed indicates a predicate (hashmap set_fn/unset_fn) denied
	// the operation.
	Vetoed Code = 3

	// EMisuse: an API precondition was violated.
	EMisuse Code = -1
	// EValue: an argument was semantically invalid (bad flag
	// combination, null where not allowed).
	EValue Code = -2
	// EKey: an unknown slot or parameter name was referenced.
	EKey Code = -3
	// ENoMemory: an allocation failed.
	ENoMemory Code = -4
	// EInterface: the interface lacks a required function.
	EInterface Code = -5
	// EFailure: an invariant was breached by a subordinate call.
	EFailure Code = -6
	// EResource: an OS or plug-in call reported failure.
	EResource Code = -7
)

var names = map[Code]string{
	OK:         "ok",
	SoftMiss:   "soft miss (not found)",
	Exists:     "already exists",
	Vetoed:     "vetoed",
	EMisuse:    "EMISUSE",
	EValue:     "EVALUE",
	EKey:       "EKEY",
	ENoMemory:  "ENOMEMORY",
	EInterface: "EINTERFACE",
	EFailure:   "EFAILURE",
	EResource:  "ERESOURCE",
}

// Error implements the error interface.
func (c Code) Error() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("status %d", int(c))
}

// IsError reports whether c represents a hard failure (c < 0).
func (c Code) IsError() bool { return c < 0 }

// IsAdvisory reports whether c is a non-zero, non-error status that
// callers may treat as control flow (c > 0).
func (c Code) IsAdvisory() bool { return c > 0 }

// Wrap attaches a causal error to c, producing an error whose message
// includes both and whose errors.Is/As resolve through to err.
func (c Code) Wrap(err error) error {
	if err == nil {
		return c
	}
	return fmt.Errorf("%s: %w", c.Error(), err)
}

// FromBool converts the boolean "set the flag" / "confirmed" verdict
// pattern used by hashmap set_fn/unset_fn predicates into Vetoed or OK.
func FromBool(ok bool) Code {
	if ok {
		return OK
	}
	return Vetoed
}
