package pool

import "context"

// Factory is supplied by the caller and produces, validates, and releases
// the resources this pool manages. Create must produce a usable resource or
// fail. Destroy must release a resource; idempotency is not required of it.
// Validate is only ever called when TestOnBorrow or TestOnReturn is
// enabled, and should report whether the resource is still usable.
type Factory[T any] interface {
	Create(ctx context.Context) (T, error)
	Destroy(ctx context.Context, resource T) error
	Validate(ctx context.Context, resource T) bool
}

// FactoryFuncs adapts three plain functions into a Factory, for callers who
// don't want to define a named type. Validate may be nil if neither
// TestOnBorrow nor TestOnReturn is configured.
type FactoryFuncs[T any] struct {
	CreateFunc   func(ctx context.Context) (T, error)
	DestroyFunc  func(ctx context.Context, resource T) error
	ValidateFunc func(ctx context.Context, resource T) bool
}

func (f FactoryFuncs[T]) Create(ctx context.Context) (T, error) { return f.CreateFunc(ctx) }

func (f FactoryFuncs[T]) Destroy(ctx context.Context, resource T) error {
	return f.DestroyFunc(ctx, resource)
}

func (f FactoryFuncs[T]) Validate(ctx context.Context, resource T) bool {
	if f.ValidateFunc == nil {
		return true
	}
	return f.ValidateFunc(ctx, resource)
}
