// Package ring implements a fixed-capacity ring buffer with oldest-first
// eviction. Add is O(1) and reports the evicted element so callers can keep
// secondary indexes in sync.
package ring

// Buffer is a bounded FIFO over T. Not safe for concurrent use; callers
// synchronize externally.
type Buffer[T any] struct {
	items []T
	head  int // index of oldest element
	size  int
}

// New creates a Buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Add appends v. When full, the oldest element is evicted and returned with
// evicted=true.
func (b *Buffer[T]) Add(v T) (old T, evicted bool) {
	if b.size == len(b.items) {
		old = b.items[b.head]
		b.items[b.head] = v
		b.head = (b.head + 1) % len(b.items)
		return old, true
	}
	b.items[(b.head+b.size)%len(b.items)] = v
	b.size++
	return old, false
}

// Get returns the element at logical index i (0 = oldest).
func (b *Buffer[T]) Get(i int) (T, bool) {
	var zero T
	if i < 0 || i >= b.size {
		return zero, false
	}
	return b.items[(b.head+i)%len(b.items)], true
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Slice returns the elements oldest-first as a new slice.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}
