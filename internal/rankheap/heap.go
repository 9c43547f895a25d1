// Package rankheap implements the bounded min-heap used to keep the top-K
// scored documents of a query in O(log K) per insertion, adapted from the
// container/heap pattern in the distributed search pack's result merger
// into a reusable generic type.
package rankheap

import "container/heap"

// Less reports whether a orders strictly before b. For result ranking this
// means a "worse" than b, so the heap's root is always the weakest item.
type Less[T any] func(a, b T) bool

// Bounded is a capacity-bounded min-heap. A capacity of 0 makes it
// unbounded: every Push succeeds and the heap simply grows.
type Bounded[T any] struct {
	capacity int
	data     rawHeap[T]
}

// New constructs a bounded min-heap of the given capacity using less to
// order items (the "minimum" is the item less considers weakest).
func New[T any](capacity int, less Less[T]) *Bounded[T] {
	return &Bounded[T]{
		capacity: capacity,
		data:     rawHeap[T]{items: nil, less: less},
	}
}

// Push inserts item, evicting the current minimum if the heap is full and
// item is strictly greater (per less) than that minimum. Returns whether
// the item was accepted into the heap.
func (b *Bounded[T]) Push(item T) bool {
	if b.capacity <= 0 || b.data.Len() < b.capacity {
		heap.Push(&b.data, item)
		return true
	}

	min := b.data.items[0]
	if !b.data.less(min, item) {
		// item is not strictly greater than the current minimum.
		return false
	}

	b.data.items[0] = item
	heap.Fix(&b.data, 0)
	return true
}

// Peek returns the current minimum without removing it.
func (b *Bounded[T]) Peek() (T, bool) {
	var zero T
	if b.data.Len() == 0 {
		return zero, false
	}
	return b.data.items[0], true
}

// Pop removes and returns the current minimum.
func (b *Bounded[T]) Pop() (T, bool) {
	var zero T
	if b.data.Len() == 0 {
		return zero, false
	}
	item := heap.Pop(&b.data).(T)
	return item, true
}

// Len reports the number of items currently held.
func (b *Bounded[T]) Len() int {
	return b.data.Len()
}

// ExtractAll drains the heap and returns its contents in ascending order
// (weakest first). Cost is O(K log K).
func (b *Bounded[T]) ExtractAll() []T {
	out := make([]T, 0, b.data.Len())
	for b.data.Len() > 0 {
		out = append(out, heap.Pop(&b.data).(T))
	}
	return out
}

// Snapshot returns a shallow copy of the heap's current contents in
// unspecified order.
func (b *Bounded[T]) Snapshot() []T {
	out := make([]T, len(b.data.items))
	copy(out, b.data.items)
	return out
}

type rawHeap[T any] struct {
	items []T
	less  Less[T]
}

func (h rawHeap[T]) Len() int            { return len(h.items) }
func (h rawHeap[T]) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h rawHeap[T]) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *rawHeap[T]) Push(x interface{}) { h.items = append(h.items, x.(T)) }
func (h *rawHeap[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
