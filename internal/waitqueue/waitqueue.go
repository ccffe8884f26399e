// Package waitqueue implements the Priority Waiter Queue: a fixed-width
// array of FIFO slots indexed by priority, ordered dequeue walks from
// highest to lowest priority (index 0 upward).
package waitqueue

import (
	"container/list"

	"resourcepool/internal/deferred"
)

// Queue holds pending Resource Requests ordered by priority slot, FIFO
// within a slot.
type Queue[T any] struct {
	slots []*list.List
}

// New creates a Queue with priorityRange slots. priorityRange is clamped to
// at least 1.
func New[T any](priorityRange int) *Queue[T] {
	if priorityRange < 1 {
		priorityRange = 1
	}
	slots := make([]*list.List, priorityRange)
	for i := range slots {
		slots[i] = list.New()
	}
	return &Queue[T]{slots: slots}
}

// clamp maps an out-of-range priority to the lowest slot (priorityRange-1),
// per spec: any value outside [0, priorityRange) is replaced by the lowest
// priority.
func (q *Queue[T]) clamp(priority int) int {
	if priority < 0 || priority >= len(q.slots) {
		return len(q.slots) - 1
	}
	return priority
}

// Handle identifies a request's position in its slot, for O(1) removal.
type Handle[T any] struct {
	priority int
	elem     *list.Element
}

// Enqueue appends req to the tail of its (clamped) priority slot and
// returns a Handle that Remove can use to unlink it in O(1), e.g. when the
// request times out while still queued.
func (q *Queue[T]) Enqueue(req *deferred.Request[T], priority int) Handle[T] {
	p := q.clamp(priority)
	elem := q.slots[p].PushBack(req)
	return Handle[T]{priority: p, elem: elem}
}

// Dequeue scans slots from index 0 upward and returns the head of the first
// non-empty slot, or nil if the queue is empty.
func (q *Queue[T]) Dequeue() *deferred.Request[T] {
	for _, slot := range q.slots {
		if front := slot.Front(); front != nil {
			slot.Remove(front)
			return front.Value.(*deferred.Request[T])
		}
	}
	return nil
}

// Remove unlinks the request identified by h, if still present. Safe to
// call more than once; a no-op after the first removal or after Dequeue has
// already popped it.
func (q *Queue[T]) Remove(h Handle[T]) {
	if h.elem == nil {
		return
	}
	q.slots[h.priority].Remove(h.elem)
}

// Len returns the total number of queued requests across all slots.
func (q *Queue[T]) Len() int {
	n := 0
	for _, slot := range q.slots {
		n += slot.Len()
	}
	return n
}
