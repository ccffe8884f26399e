// Package resource implements the Pooled Resource state machine: the
// engine's wrapper around a live resource, carrying its lifecycle state and
// timing metadata.
package resource

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is one of the Pooled Resource lifecycle states.
type State int

const (
	// Idle means the resource sits in the available cache, ready to be
	// dispatched.
	Idle State = iota
	// Allocated means the resource is on loan to a borrower.
	Allocated
	// Validation means the resource is being tested (on borrow or on
	// return) before a disposition is decided.
	Validation
	// Returning means release() has been called but testOnReturn has not
	// yet decided the resource's fate.
	Returning
	// Invalid is terminal: the resource is being or has been destroyed.
	Invalid
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Allocated:
		return "allocated"
	case Validation:
		return "validation"
	case Returning:
		return "returning"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Pooled is the engine's internal wrapper around a live resource of type T.
type Pooled[T any] struct {
	mu sync.Mutex

	ID           uuid.UUID
	Handle       T
	state        State
	createdAt    time.Time
	lastBorrowAt time.Time
	lastReturnAt time.Time
	lastIdleAt   time.Time
}

// New wraps a freshly created resource. It starts life IDLE, matching the
// moment it is inserted into allResources and the available cache by the
// creation pipeline.
func New[T any](handle T) *Pooled[T] {
	now := time.Now()
	return &Pooled[T]{
		ID:        uuid.New(),
		Handle:    handle,
		state:     Idle,
		createdAt: now,
		lastIdleAt: now,
	}
}

// State returns the resource's current lifecycle state.
func (p *Pooled[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastIdleAt returns the timestamp at which the resource last became IDLE.
// Only meaningful while State() == Idle, per the invariant that lastIdleTime
// is non-null iff state == IDLE.
func (p *Pooled[T]) LastIdleAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastIdleAt
}

// errInvalidTransition reports an illegal state transition attempt.
func errInvalidTransition(from State, to string) error {
	return fmt.Errorf("resource: illegal transition from %s to %s", from, to)
}

// Allocate transitions IDLE -> ALLOCATED, on dispatch to a waiter.
func (p *Pooled[T]) Allocate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return errInvalidTransition(p.state, "allocated")
	}
	p.state = Allocated
	p.lastBorrowAt = time.Now()
	return nil
}

// BeginTest transitions IDLE -> VALIDATION, for testOnBorrow.
func (p *Pooled[T]) BeginTest() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return errInvalidTransition(p.state, "validation")
	}
	p.state = Validation
	return nil
}

// Returning transitions ALLOCATED -> RETURNING, on release.
func (p *Pooled[T]) Returning() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Allocated {
		return errInvalidTransition(p.state, "returning")
	}
	p.state = Returning
	p.lastReturnAt = time.Now()
	return nil
}

// ToIdle transitions ALLOCATED or RETURNING -> IDLE directly (no
// testOnReturn), or VALIDATION -> IDLE (validated true).
func (p *Pooled[T]) ToIdle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Allocated, Returning, Validation:
		p.state = Idle
		p.lastIdleAt = time.Now()
		return nil
	default:
		return errInvalidTransition(p.state, "idle")
	}
}

// BeginReturnTest transitions RETURNING -> VALIDATION, for testOnReturn.
func (p *Pooled[T]) BeginReturnTest() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Returning {
		return errInvalidTransition(p.state, "validation")
	}
	p.state = Validation
	return nil
}

// Invalidate transitions any state -> INVALID, on destroy. Terminal.
func (p *Pooled[T]) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Invalid
}

// ActiveTime returns the time elapsed since the resource was last borrowed,
// or 0 if it has never been borrowed. It keeps counting after the resource
// is returned.
func (p *Pooled[T]) ActiveTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastBorrowAt.IsZero() {
		return 0
	}
	return time.Since(p.lastBorrowAt)
}
