package observability

// ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// entry. Not safe for concurrent use; Monitor guards it.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	idx := (r.head + r.size) % len(r.items)
	r.items[idx] = v
	if r.size < len(r.items) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// dropOldestWhile removes entries from the head while drop returns true.
func (r *ring[T]) dropOldestWhile(drop func(T) bool) int {
	var zero T
	n := 0
	for r.size > 0 && drop(r.items[r.head]) {
		r.items[r.head] = zero
		r.head = (r.head + 1) % len(r.items)
		r.size--
		n++
	}
	return n
}

// snapshot returns entries oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) cap() int { return len(r.items) }
