package scanner

import (
	"fmt"
	"testing"
)

func event(id string) *ErrorEvent {
	return &ErrorEvent{ID: id, PatternName: "log_error"}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(10)

	for i := 0; i < 3; i++ {
		q.Push(event(fmt.Sprintf("e%d", i)))
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	drained := q.Drain(0)
	if len(drained) != 3 {
		t.Fatalf("drained %d events, want 3", len(drained))
	}
	for i, e := range drained {
		if want := fmt.Sprintf("e%d", i); e.ID != want {
			t.Errorf("drained[%d] = %s, want %s", i, e.ID, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.Len())
	}
}

func TestQueue_DrainMax(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Push(event(fmt.Sprintf("e%d", i)))
	}

	first := q.Drain(2)
	if len(first) != 2 || first[0].ID != "e0" || first[1].ID != "e1" {
		t.Errorf("Drain(2) returned wrong events: %+v", first)
	}
	if q.Len() != 3 {
		t.Errorf("len = %d, want 3", q.Len())
	}

	rest := q.Drain(100)
	if len(rest) != 3 || rest[0].ID != "e2" {
		t.Errorf("second drain returned wrong events")
	}
}

func TestQueue_DropOldestWhenFull(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(event(fmt.Sprintf("e%d", i)))
	}

	if q.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", q.Dropped())
	}

	drained := q.Drain(0)
	if len(drained) != 3 {
		t.Fatalf("drained %d, want 3", len(drained))
	}
	// Oldest two were evicted; e2..e4 remain.
	for i, want := range []string{"e2", "e3", "e4"} {
		if drained[i].ID != want {
			t.Errorf("drained[%d] = %s, want %s", i, drained[i].ID, want)
		}
	}
}

func TestQueue_EmptyDrain(t *testing.T) {
	q := NewQueue(3)
	if got := q.Drain(0); got != nil {
		t.Errorf("draining empty queue returned %v, want nil", got)
	}
}
