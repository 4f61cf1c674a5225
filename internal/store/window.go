package store

import "github.com/gammazero/deque"

// window is a bounded FIFO log. Pushing past the limit evicts the single
// oldest element, so the remaining elements keep their order.
//
// window is not safe for concurrent use; MemoryStore guards it.
type window[T any] struct {
	items deque.Deque[T]
	limit int
}

func newWindow[T any](limit int) *window[T] {
	return &window[T]{limit: limit}
}

// push appends v and reports the evicted element, if any.
func (w *window[T]) push(v T) (evicted T, ok bool) {
	w.items.PushBack(v)
	if w.items.Len() > w.limit {
		return w.items.PopFront(), true
	}
	return evicted, false
}

func (w *window[T]) len() int {
	return w.items.Len()
}

// slice copies the elements out, oldest first.
func (w *window[T]) slice() []T {
	out := make([]T, w.items.Len())
	for i := range out {
		out[i] = w.items.At(i)
	}
	return out
}
