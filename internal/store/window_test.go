package store

import (
	"reflect"
	"testing"
)

func TestWindow_PushWithinLimit(t *testing.T) {
	w := newWindow[int](3)

	for i := 1; i <= 3; i++ {
		if _, evicted := w.push(i); evicted {
			t.Errorf("push(%d) evicted, want no eviction", i)
		}
	}
	if got := w.slice(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("slice() = %v, want [1 2 3]", got)
	}
}

func TestWindow_EvictsOldestFirst(t *testing.T) {
	w := newWindow[int](3)
	for i := 1; i <= 3; i++ {
		w.push(i)
	}

	old, evicted := w.push(4)
	if !evicted || old != 1 {
		t.Errorf("push(4) = %d, %v, want 1, true", old, evicted)
	}
	old, evicted = w.push(5)
	if !evicted || old != 2 {
		t.Errorf("push(5) = %d, %v, want 2, true", old, evicted)
	}

	if w.len() != 3 {
		t.Errorf("len() = %d, want 3", w.len())
	}
	if got := w.slice(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("slice() = %v, want [3 4 5]", got)
	}
}

func TestWindow_SliceIsCopy(t *testing.T) {
	w := newWindow[string](2)
	w.push("a")

	s := w.slice()
	s[0] = "changed"

	if got := w.slice()[0]; got != "a" {
		t.Errorf("slice()[0] = %q after external mutation, want a", got)
	}
}

func TestWindow_EmptySliceNotNil(t *testing.T) {
	w := newWindow[int](1)
	if got := w.slice(); got == nil || len(got) != 0 {
		t.Errorf("slice() = %#v, want empty non-nil", got)
	}
}
