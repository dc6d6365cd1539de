// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

// Storage holds caller-defined extension state for one context.
//
// Storage is owned by the context's goroutine and is cleared when the
// context is closed. Values are addressed through [Slot] keys.
type Storage struct {
	values []any
	set    []bool
}

// Slot is a typed key into every context's Storage.
//
// Slots are obtained from [NewSlot] and carry an index registered with a
// specific Registry; the same Slot is valid for all contexts of that
// registry.
type Slot[V any] struct {
	index int
}

// NewSlot registers a new storage slot with r and returns its key.
//
// Registration is safe from any goroutine. Each call returns a distinct
// Slot, even for the same V.
func NewSlot[V, M any](r *Registry[M]) Slot[V] {
	return Slot[V]{index: int(r.slots.AddAcqRel(1) - 1)}
}

// Load returns the value stored in s, if any.
func (s Slot[V]) Load(st *Storage) (V, bool) {
	if s.index >= len(st.values) || !st.set[s.index] {
		var zero V
		return zero, false
	}
	v, _ := st.values[s.index].(V)
	return v, true
}

// Store sets the value of s.
func (s Slot[V]) Store(st *Storage, v V) {
	st.grow(s.index + 1)
	st.values[s.index] = v
	st.set[s.index] = true
}

// Delete removes the value of s.
func (s Slot[V]) Delete(st *Storage) {
	if s.index >= len(st.values) {
		return
	}
	st.values[s.index] = nil
	st.set[s.index] = false
}

func (st *Storage) grow(n int) {
	if n <= len(st.values) {
		return
	}
	values := make([]any, n)
	copy(values, st.values)
	set := make([]bool, n)
	copy(set, st.set)
	st.values, st.set = values, set
}

func (st *Storage) reset() {
	clear(st.values)
	clear(st.set)
}
