package pool

import "fmt"

// baseErr gives every pool error kind a distinct, discriminable Go type
// while sharing a single message-formatting implementation.
type baseErr struct {
	msg string
}

func (e *baseErr) Error() string {
	return e.msg
}

// TimeoutError is returned when an acquire request exceeds
// Config.AcquireTimeout.
type TimeoutError struct{ baseErr }

func newTimeoutError() *TimeoutError {
	return &TimeoutError{baseErr{"pool: acquire timed out waiting for a resource"}}
}

// DestroyTimeoutError is returned (via the FactoryDestroyError event, never
// to a caller directly) when factory Destroy exceeds Config.DestroyTimeout.
type DestroyTimeoutError struct{ baseErr }

func newDestroyTimeoutError() *DestroyTimeoutError {
	return &DestroyTimeoutError{baseErr{"pool: factory destroy timed out"}}
}

// QueueFullError is returned when acquire is rejected because
// Config.MaxWaitingClients is exceeded and there is no spare capacity.
type QueueFullError struct{ baseErr }

func newQueueFullError() *QueueFullError {
	return &QueueFullError{baseErr{"pool: waiting queue is full"}}
}

// DrainingError is returned when acquire is attempted on a pool that is
// draining or has drained.
type DrainingError struct{ baseErr }

func newDrainingError() *DrainingError {
	return &DrainingError{baseErr{"pool: pool is draining"}}
}

// UnknownResourceError is returned by Release/Destroy when the handle has
// no active loan.
type UnknownResourceError struct{ baseErr }

func newUnknownResourceError() *UnknownResourceError {
	return &UnknownResourceError{baseErr{"pool: resource is not currently borrowed from this pool"}}
}

// ValidationFailure describes a validator returning false or panicking. The
// engine consumes such failures internally: the resource is destroyed and
// dispensing continues. The engine does not construct this type, and a
// failed validation is neither returned to a caller nor emitted as an event.
type ValidationFailure struct{ baseErr }

func newValidationFailure(reason string) *ValidationFailure {
	return &ValidationFailure{baseErr{fmt.Sprintf("pool: validation failed: %s", reason)}}
}

// FactoryCreateError wraps a factory.Create failure. Never surfaced to a
// caller's future; emitted only via the FactoryCreateError event.
type FactoryCreateError struct {
	baseErr
	Cause error
}

func newFactoryCreateError(cause error) *FactoryCreateError {
	return &FactoryCreateError{baseErr{fmt.Sprintf("pool: factory create failed: %v", cause)}, cause}
}

func (e *FactoryCreateError) Unwrap() error { return e.Cause }

// FactoryDestroyError wraps a factory.Destroy failure. Never surfaced to a
// caller's future; emitted only via the FactoryDestroyError event. A destroy
// timeout is emitted on the same event as a bare DestroyTimeoutError, not
// wrapped in this type.
type FactoryDestroyError struct {
	baseErr
	Cause error
}

func newFactoryDestroyError(cause error) *FactoryDestroyError {
	return &FactoryDestroyError{baseErr{fmt.Sprintf("pool: factory destroy failed: %v", cause)}, cause}
}

func (e *FactoryDestroyError) Unwrap() error { return e.Cause }
