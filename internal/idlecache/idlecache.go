// Package idlecache implements the Available Cache: an ordered sequence of
// idle Pooled Resources supporting FIFO or LIFO dispensing, forward and
// reverse iteration, and a stable eviction cursor that survives
// mid-iteration removal from anywhere else in the cache.
package idlecache

import (
	"container/list"

	"resourcepool/internal/resource"
)

// Cache holds IDLE Pooled Resources in dispense order. The head is always
// the next item dispensed; Push appends to the tail (FIFO), Unshift
// prepends to the head (LIFO).
type Cache[T any] struct {
	order  *list.List
	cursor *Cursor[T]
}

// New creates an empty Cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{order: list.New()}
}

// Len returns the number of idle resources currently cached.
func (c *Cache[T]) Len() int {
	return c.order.Len()
}

// Push appends p to the tail of the cache (used for fifo=true returns).
func (c *Cache[T]) Push(p *resource.Pooled[T]) *list.Element {
	return c.order.PushBack(p)
}

// Unshift prepends p to the head of the cache (used for fifo=false returns,
// and to push a dispensed-but-unwanted resource back when no waiter claims
// it).
func (c *Cache[T]) Unshift(p *resource.Pooled[T]) *list.Element {
	return c.order.PushFront(p)
}

// Shift pops and returns the head of the cache (the dispense end), or nil
// if empty.
func (c *Cache[T]) Shift() *resource.Pooled[T] {
	front := c.order.Front()
	if front == nil {
		return nil
	}
	c.Remove(front)
	return front.Value.(*resource.Pooled[T])
}

// Pop pops and returns the tail of the cache, or nil if empty.
func (c *Cache[T]) Pop() *resource.Pooled[T] {
	back := c.order.Back()
	if back == nil {
		return nil
	}
	c.Remove(back)
	return back.Value.(*resource.Pooled[T])
}

// Remove unlinks elem from the cache, wherever it sits, and defensively
// advances any registered eviction cursor currently parked on elem so the
// cursor is never left dangling.
func (c *Cache[T]) Remove(elem *list.Element) {
	if c.cursor != nil && c.cursor.elem == elem {
		c.cursor.elem = elem.Next()
	}
	c.order.Remove(elem)
}

// ForEach walks the cache head-to-tail (oldest to newest under FIFO
// semantics), applying fn. fn returning false stops iteration early.
func (c *Cache[T]) ForEach(fn func(*resource.Pooled[T]) bool) {
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		if !fn(e.Value.(*resource.Pooled[T])) {
			return
		}
		e = next
	}
}

// ForEachReverse walks the cache tail-to-head.
func (c *Cache[T]) ForEachReverse(fn func(*resource.Pooled[T]) bool) {
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		if !fn(e.Value.(*resource.Pooled[T])) {
			return
		}
		e = prev
	}
}

// Cursor is a stable iterator over a Cache's elements. It survives
// insertions and removals anywhere in the cache: if the element it is
// parked on is removed, Cache.Remove snaps it forward to the following
// element (or to "not started", which re-enters at the head on the next
// Next call, realizing wraparound).
type Cursor[T any] struct {
	cache *Cache[T]
	elem  *list.Element
}

// NewCursor creates and registers a Cursor over c. Only one cursor may be
// registered at a time, matching the single persistent evictionCursor the
// engine maintains.
func (c *Cache[T]) NewCursor() *Cursor[T] {
	cur := &Cursor[T]{cache: c}
	c.cursor = cur
	return cur
}

// Next advances the cursor and returns the next Pooled Resource, wrapping
// around to the head when the end is reached. Returns (nil, false) if the
// cache is empty.
func (cur *Cursor[T]) Next() (*resource.Pooled[T], bool) {
	if cur.elem == nil {
		cur.elem = cur.cache.order.Front()
	} else {
		next := cur.elem.Next()
		if next == nil {
			next = cur.cache.order.Front()
		}
		cur.elem = next
	}
	if cur.elem == nil {
		return nil, false
	}
	return cur.elem.Value.(*resource.Pooled[T]), true
}

// Current returns the element the cursor currently points at, for removal
// via Cache.Remove (e.g. after the evictor decides to destroy it).
func (cur *Cursor[T]) Current() *list.Element {
	return cur.elem
}
