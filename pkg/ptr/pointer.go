package ptr

import "unsafe"

// Flags describes pointer attributes. The two high-order bits are
// reserved by this package; the rest are available to callers.
type Flags uint64

const (
	// FlagFunction selects the Func field of a Pointer over Data.
	// Mutually exclusive with FlagWritable.
	FlagFunction Flags = 1 << 63
	// FlagWritable marks Data as safe to write through. Mutually
	// exclusive with FlagFunction.
	FlagWritable Flags = 1 << 62

	// BuiltinFlagsBits is the number of high-order bits reserved above.
	BuiltinFlagsBits = 2
	// UserFlagsBits is the number of low-order bits available to callers.
	UserFlagsBits = 64 - BuiltinFlagsBits
	// UserFlagsMask masks the user-definable bits of Flags.
	UserFlagsMask Flags = (1 << UserFlagsBits) - 1
)

// Function is a generic placeholder for any function value carried by
// a Pointer. Callers cast it back to the real signature before calling
// it; calling it through the wrong signature is undefined behavior,
// same as the C original's archi_function_t.
type Function = unsafe.Pointer

// Layout describes a data array: element count, element size, and
// element alignment. Size and Alignment are 0 when unspecified;
// Alignment, when nonzero, must be a power of two.
type Layout struct {
	NumOf     uint64
	Size      uint64
	Alignment uint64
}

// Pointer is the universal value wrapper: a tagged pointer carrying
// ownership (via RefCount), array layout, and flags. Pointers are
// copy-by-value; passing one to a callee that intends to retain it
// means cloning the RefCount handle and incrementing it.
type Pointer struct {
	Data     unsafe.Pointer
	Func     Function
	RefCount *RefCount
	Flags    Flags
	Element  Layout
}

// IsFunction reports whether p wraps a function pointer rather than data.
func (p Pointer) IsFunction() bool { return p.Flags&FlagFunction != 0 }

// IsWritable reports whether writing through p.Data is permitted.
func (p Pointer) IsWritable() bool { return p.Flags&FlagWritable != 0 }

// Retain clones p and increments its reference count, conveying
// ownership to the caller. The returned Pointer is byte-identical to p.
func Retain(p Pointer) Pointer {
	Increment(p.RefCount)
	return p
}

// Release decrements p's reference count. Call this exactly once per
// Retain (or per Pointer obtained from an init/get call that conveys
// ownership) when the holder is done with the value.
func Release(p Pointer) bool {
	return Decrement(p.RefCount)
}

// PaddedSize returns size rounded up to the next multiple of alignment.
// alignment of 0 is treated as 1 (no padding).
func PaddedSize(size, alignment uint64) uint64 {
	if alignment == 0 {
		alignment = 1
	}
	return (size + alignment - 1) / alignment * alignment
}

// String wraps a Go string as a data Pointer (Element.NumOf == 1 byte
// slice of len(s)), for the few built-in interfaces whose init
// parameters are textual (e.g. the "library" interface's pathname).
// The returned Pointer carries no RefCount: string data in Go needs no
// destructor, since the runtime keeps the backing array alive as long
// as the string value itself is reachable.
func String(s string) Pointer {
	if s == "" {
		return Pointer{}
	}
	return Pointer{
		Data:    unsafe.Pointer(unsafe.StringData(s)),
		Element: Layout{NumOf: 1, Size: uint64(len(s)), Alignment: 1},
	}
}

// ToString recovers a string previously wrapped with String. It
// returns "" for a null or zero-length Pointer.
func ToString(p Pointer) string {
	if p.Data == nil || p.Element.Size == 0 {
		return ""
	}
	return unsafe.String((*byte)(p.Data), int(p.Element.Size))
}

// Bool wraps a boolean as a data Pointer using the low bit of Flags,
// matching the convention set by pointerInit's use of Flags for small
// scalar init parameters (num_elements, element_size, ...).
func Bool(b bool) Pointer {
	if b {
		return Pointer{Flags: 1}
	}
	return Pointer{}
}

// ToBool recovers a boolean wrapped with Bool.
func ToBool(p Pointer) bool {
	return p.Flags&1 != 0
}
