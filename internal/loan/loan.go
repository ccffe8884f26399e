// Package loan implements the bookkeeping record that binds a borrowed
// resource to a completion handle which settles when the borrower returns
// it.
package loan

import (
	"resourcepool/internal/deferred"
	"resourcepool/internal/resource"
)

// Loan associates a borrowed Pooled Resource with a Deferred that completes
// (with no value) when the borrower releases it. Exactly one Loan exists
// per currently-borrowed resource. Rejection of a Loan is not part of the
// borrower protocol: callers only ever see it settle.
type Loan[T any] struct {
	Pooled   *resource.Pooled[T]
	settled  *deferred.Deferred[struct{}]
}

// New creates a Loan for the given Pooled Resource.
func New[T any](pooled *resource.Pooled[T]) *Loan[T] {
	return &Loan[T]{
		Pooled:  pooled,
		settled: deferred.New[struct{}](),
	}
}

// Settle resolves the loan's completion future. Called once, when the
// borrower returns (or the resource is destroyed out from under) the loan.
func (l *Loan[T]) Settle() {
	l.settled.Resolve(struct{}{})
}

// Future returns the handle that completes when the loan settles.
func (l *Loan[T]) Future() *deferred.Future[struct{}] {
	return l.settled.Future()
}
