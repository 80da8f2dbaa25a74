package server

// Ring is a fixed-capacity ring buffer that keeps the most recent values.
type Ring[T any] struct {
	data []T
	pos  int
	full bool
	cap  int
}

// NewRing creates a Ring with the given capacity.
func NewRing[T any](cap int) *Ring[T] {
	cap = max(1, cap)
	return &Ring[T]{
		data: make([]T, cap),
		cap:  cap,
	}
}

// Push adds a value, overwriting the oldest one when full.
func (r *Ring[T]) Push(v T) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.cap {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of elements in the buffer.
func (r *Ring[T]) Len() int {
	if r.full {
		return r.cap
	}
	return r.pos
}

// Slice returns the buffer contents in insertion order.
func (r *Ring[T]) Slice() []T {
	n := r.Len()
	out := make([]T, n)
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[r.cap-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// Reset empties the buffer.
func (r *Ring[T]) Reset() {
	clear(r.data)
	r.pos = 0
	r.full = false
}
