// Package hashmap implements the insertion-ordered, chained-bucket map
// from string keys to ptr.Pointer that backs the registry and any user
// data stored behind the "hashmap" built-in interface.
//
// Nodes live in a slab (a Go slice) and are linked by index rather
// than by pointer: -1 means "no link". This gives O(1) unlink without
// raw pointer cycles.
package hashmap

import (
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

const none = -1

type node struct {
	key   string
	value ptr.Pointer

	hashPrev, hashNext     int
	chronoPrev, chronoNext int
}

// Map is a fixed-capacity ordered hashmap. The zero value is not
// valid; use New.
type Map struct {
	capacity int
	buckets  []int // bucket head node index, or none
	nodes    []node
	free     []int // indices of freed nodes, reused on next insert
	size     int

	chronoFirst, chronoLast int
}

// New allocates a hashmap with the given fixed bucket capacity. There
// is no automatic rehashing; capacity 0 is a misuse error.
func New(capacity int) (*Map, errcode.Code) {
	if capacity <= 0 {
		return nil, errcode.EMisuse
	}
	m := &Map{
		capacity:    capacity,
		buckets:     make([]int, capacity),
		chronoFirst: none,
		chronoLast:  none,
	}
	for i := range m.buckets {
		m.buckets[i] = none
	}
	return m, errcode.OK
}

// hash computes djb2 over key, reduced modulo the map's capacity.
func hash(key string, capacity int) int {
	var h uint64 = 5381
	for i := 0; i < len(key); i++ {
		h = h*33 + uint64(key[i])
	}
	return int(h % uint64(capacity))
}

func (m *Map) findInBucket(bucket int, key string) int {
	for i := m.buckets[bucket]; i != none; i = m.nodes[i].hashNext {
		if m.nodes[i].key == key {
			return i
		}
	}
	return none
}

func (m *Map) find(key string) int {
	return m.findInBucket(hash(key, m.capacity), key)
}

// Get returns the value stored at key. The returned Pointer is a
// borrowed handle — its reference count is not bumped — valid only as
// long as the caller does not mutate the map.
func (m *Map) Get(key string) (ptr.Pointer, errcode.Code) {
	i := m.find(key)
	if i == none {
		return ptr.Pointer{}, errcode.SoftMiss
	}
	return m.nodes[i].value, errcode.OK
}

// SetParams configures Set's insert/update policy and an optional
// veto predicate run against the existing value before an update.
type SetParams struct {
	InsertionAllowed bool
	UpdateAllowed    bool
	SetFn            func(key string, old ptr.Pointer) bool
}

// Set creates or replaces the value at key. On insertion the key
// string is copied (trivially true of Go strings) and value's
// reference count is bumped. On update, value's reference count is
// bumped before the old value's is decremented, so that set(key,
// get(key)) — new == old — never transiently drops to zero.
func (m *Map) Set(key string, value ptr.Pointer, p SetParams) errcode.Code {
	bucket := hash(key, m.capacity)
	i := m.findInBucket(bucket, key)

	if i == none {
		if !p.InsertionAllowed {
			return errcode.SoftMiss
		}
		idx := m.allocNode()
		m.nodes[idx] = node{
			key:        key,
			value:      value,
			hashPrev:   none,
			hashNext:   m.buckets[bucket],
			chronoPrev: m.chronoLast,
			chronoNext: none,
		}
		if m.buckets[bucket] != none {
			m.nodes[m.buckets[bucket]].hashPrev = idx
		}
		m.buckets[bucket] = idx

		if m.chronoFirst == none {
			m.chronoFirst = idx
		} else {
			m.nodes[m.chronoLast].chronoNext = idx
		}
		m.chronoLast = idx

		m.size++
		ptr.Increment(value.RefCount)
		return errcode.OK
	}

	if !p.UpdateAllowed {
		return errcode.Exists
	}
	if p.SetFn != nil && !p.SetFn(key, m.nodes[i].value) {
		return errcode.Vetoed
	}

	ptr.Increment(value.RefCount)
	ptr.Decrement(m.nodes[i].value.RefCount)
	m.nodes[i].value = value
	return errcode.OK
}

// UnsetParams configures an optional veto predicate run before removal.
type UnsetParams struct {
	UnsetFn func(key string, old ptr.Pointer) bool
}

// Unset removes key from the map, decrementing the held value's
// reference count.
func (m *Map) Unset(key string, p UnsetParams) errcode.Code {
	i := m.find(key)
	if i == none {
		return errcode.SoftMiss
	}
	if p.UnsetFn != nil && !p.UnsetFn(key, m.nodes[i].value) {
		return errcode.Vetoed
	}
	m.removeNode(i)
	return errcode.OK
}

func (m *Map) removeNode(i int) {
	n := m.nodes[i]

	if n.hashPrev != none {
		m.nodes[n.hashPrev].hashNext = n.hashNext
	} else {
		m.buckets[hash(n.key, m.capacity)] = n.hashNext
	}
	if n.hashNext != none {
		m.nodes[n.hashNext].hashPrev = n.hashPrev
	}

	if n.chronoPrev != none {
		m.nodes[n.chronoPrev].chronoNext = n.chronoNext
	} else {
		m.chronoFirst = n.chronoNext
	}
	if n.chronoNext != none {
		m.nodes[n.chronoNext].chronoPrev = n.chronoPrev
	} else {
		m.chronoLast = n.chronoPrev
	}

	ptr.Decrement(n.value.RefCount)

	m.nodes[i] = node{}
	m.free = append(m.free, i)
	m.size--
}

func (m *Map) allocNode() int {
	if len(m.free) > 0 {
		idx := m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
		return idx
	}
	m.nodes = append(m.nodes, node{})
	return len(m.nodes) - 1
}

// TravActionType is the verdict a Traverse callback returns for the
// current entry.
type TravActionType int

const (
	// TravKeep leaves the entry unchanged.
	TravKeep TravActionType = iota
	// TravSet replaces the entry's value with NewValue.
	TravSet
	// TravUnset removes the entry.
	TravUnset
)

// TravAction is the verdict returned by a Traverse callback.
type TravAction struct {
	Type      TravActionType
	NewValue  ptr.Pointer
	Interrupt bool
}

// TravFunc is called once per live entry during Traverse, in
// chronological order (or reverse). index counts entries visited so
// far in this traversal, starting at 0.
type TravFunc func(key string, value ptr.Pointer, index int) TravAction

// Traverse walks the chronological chain from first-to-last (or the
// reverse), applying each callback's verdict. The node to visit next
// is captured before the verdict is applied, so TravUnset mid-walk is
// safe. Returns errcode.SoftMiss (1) if the traversal was interrupted,
// errcode.OK (0) otherwise.
func (m *Map) Traverse(firstToLast bool, fn TravFunc) errcode.Code {
	var cur int
	if firstToLast {
		cur = m.chronoFirst
	} else {
		cur = m.chronoLast
	}

	index := 0
	for cur != none {
		var following int
		if firstToLast {
			following = m.nodes[cur].chronoNext
		} else {
			following = m.nodes[cur].chronoPrev
		}

		n := &m.nodes[cur]
		action := fn(n.key, n.value, index)
		index++

		switch action.Type {
		case TravKeep:
			// nothing
		case TravSet:
			ptr.Increment(action.NewValue.RefCount)
			ptr.Decrement(n.value.RefCount)
			n.value = action.NewValue
		case TravUnset:
			m.removeNode(cur)
		}

		if action.Interrupt {
			return errcode.SoftMiss
		}
		cur = following
	}
	return errcode.OK
}

// Size returns the number of live entries.
func (m *Map) Size() int { return m.size }

// Close releases every entry's held reference count, emptying the map.
func (m *Map) Close() {
	m.Traverse(false, func(string, ptr.Pointer, int) TravAction {
		return TravAction{Type: TravUnset}
	})
}
