package scanner

import "sync"

// Queue is a bounded FIFO of error events. When the queue is full the
// oldest unread events are dropped in favor of new ones: bounded memory
// wins over completeness.
type Queue struct {
	mu       sync.Mutex
	events   []*ErrorEvent
	capacity int
	dropped  int64
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{
		events:   make([]*ErrorEvent, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an event, evicting the oldest entry if the queue is full.
// Returns true if an older event was dropped to make room.
func (q *Queue) Push(event *ErrorEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.events) >= q.capacity {
		n := len(q.events) - q.capacity + 1
		copy(q.events, q.events[n:])
		q.events = q.events[:len(q.events)-n]
		q.dropped += int64(n)
		evicted = true
	}
	q.events = append(q.events, event)
	return evicted
}

// Drain removes and returns up to max events in FIFO order.
// max <= 0 drains the whole queue.
func (q *Queue) Drain(max int) []*ErrorEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]*ErrorEvent, n)
	copy(out, q.events[:n])
	remaining := copy(q.events, q.events[n:])
	q.events = q.events[:remaining]
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns the total number of events evicted since creation.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
