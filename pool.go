// Package pool implements a generic resource pool: a bounded set of
// expensive resources (database connections, sockets, parsers, file
// handles) lent out to callers on demand and reclaimed on release, with
// priority-ordered waiting, optional pre/post-use validation, and
// background idle eviction.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resourcepool/internal/deferred"
	"resourcepool/internal/evictor"
	"resourcepool/internal/idlecache"
	"resourcepool/internal/loan"
	"resourcepool/internal/resource"
	"resourcepool/internal/waitqueue"
)

// Pool is the engine: it composes the Deferred/Request/Loan primitives, the
// Pooled Resource state machine, the priority waiter queue, the available
// cache, and the evictor into the acquire/release/destroy/drain/clear
// lifecycle.
type Pool[T comparable] struct {
	mu      sync.Mutex
	cv      *sync.Cond
	cfg     Config
	factory Factory[T]
	events  eventEmitter

	waiters         *waitqueue.Queue[T]
	available       *idlecache.Cache[T]
	allResources    map[*resource.Pooled[T]]struct{}
	loans           map[T]*loan.Loan[T]
	testingOnBorrow map[*resource.Pooled[T]]struct{}

	creating   int
	destroying int

	started  bool
	draining bool

	evictionCursor *idlecache.Cursor[T]
	evictionStop   chan struct{}
}

// New constructs a Pool around factory, applying opts over DefaultConfig.
// If Config.Autostart is true (the default), Start is called before New
// returns.
func New[T comparable](factory Factory[T], opts ...Option) (*Pool[T], error) {
	if factory == nil {
		return nil, errors.New("pool: factory must not be nil")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.normalize()

	p := &Pool[T]{
		cfg:             cfg,
		factory:         factory,
		waiters:         waitqueue.New[T](cfg.PriorityRange),
		available:       idlecache.New[T](),
		allResources:    make(map[*resource.Pooled[T]]struct{}),
		loans:           make(map[T]*loan.Loan[T]),
		testingOnBorrow: make(map[*resource.Pooled[T]]struct{}),
	}
	p.cv = sync.NewCond(&p.mu)

	if cfg.Autostart {
		_ = p.Start()
	}
	return p, nil
}

// --- public contract -------------------------------------------------

// Acquire requests a resource, blocking until one is available, created, or
// the request times out. Fails immediately if the pool is draining, or with
// QueueFullError if the waiter queue is full with no spare capacity and no
// idle resource.
func (p *Pool[T]) Acquire(ctx context.Context, priority int) (T, error) {
	var zero T

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return zero, newDrainingError()
	}
	if p.available.Len() < 1 && p.spareCapacityLocked() < 1 &&
		p.cfg.MaxWaitingClients > 0 && p.waiters.Len() >= p.cfg.MaxWaitingClients {
		p.mu.Unlock()
		return zero, newQueueFullError()
	}

	req := deferred.NewRequest[T](p.cfg.AcquireTimeout, newTimeoutError())
	handle := p.waiters.Enqueue(req, priority)
	go p.watchTimeout(req, handle)

	p.dispenseLocked()
	p.mu.Unlock()
	p.cv.Broadcast()

	return req.Future().Wait()
}

// Release returns a borrowed resource to the pool. Fails with
// UnknownResourceError if the resource has no active loan. The call blocks
// until the post-return disposition (re-idle, or validate-then-destroy
// under TestOnReturn) is fully decided.
func (p *Pool[T]) Release(ctx context.Context, res T) error {
	p.mu.Lock()
	ln, ok := p.loans[res]
	if !ok {
		p.mu.Unlock()
		return newUnknownResourceError()
	}
	delete(p.loans, res)
	pooled := ln.Pooled
	if err := pooled.Returning(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()
	ln.Settle()

	if p.cfg.TestOnReturn {
		_ = pooled.BeginReturnTest()
		if p.safeValidate(ctx, pooled.Handle) {
			_ = pooled.ToIdle()
			p.mu.Lock()
			p.pushAvailableLocked(pooled)
			p.dispenseLocked()
			p.mu.Unlock()
			p.cv.Broadcast()
			return nil
		}
		p.destroyPooled(ctx, pooled)
		return nil
	}

	_ = pooled.ToIdle()
	p.mu.Lock()
	p.pushAvailableLocked(pooled)
	p.dispenseLocked()
	p.mu.Unlock()
	p.cv.Broadcast()
	return nil
}

// Destroy returns a borrowed resource marked for destruction instead of
// re-idling it. Fails with UnknownResourceError if res has no active loan.
func (p *Pool[T]) Destroy(ctx context.Context, res T) error {
	p.mu.Lock()
	ln, ok := p.loans[res]
	if !ok {
		p.mu.Unlock()
		return newUnknownResourceError()
	}
	delete(p.loans, res)
	pooled := ln.Pooled
	p.mu.Unlock()
	ln.Settle()

	p.destroyPooled(ctx, pooled)

	p.mu.Lock()
	p.dispenseLocked()
	p.mu.Unlock()
	p.cv.Broadcast()
	return nil
}

// Use acquires a resource, invokes fn with it, and releases it on success or
// destroys it on failure, propagating fn's result or error. Go methods
// cannot introduce their own type parameters, so this is a package-level
// function rather than a method on Pool.
func Use[T comparable, U any](ctx context.Context, p *Pool[T], priority int, fn func(T) (U, error)) (U, error) {
	var zero U
	res, err := p.Acquire(ctx, priority)
	if err != nil {
		return zero, err
	}

	result, ferr := fn(res)
	if ferr != nil {
		if destroyErr := p.Destroy(ctx, res); destroyErr != nil {
			return zero, fmt.Errorf("%w (and destroy failed: %v)", ferr, destroyErr)
		}
		return zero, ferr
	}
	if relErr := p.Release(ctx, res); relErr != nil {
		return zero, relErr
	}
	return result, nil
}

// IsBorrowedResource reports whether res is currently on loan from this
// pool.
func (p *Pool[T]) IsBorrowedResource(res T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loans[res]
	return ok
}

// Start is idempotent: it marks the pool started, schedules the background
// evictor if configured, and triggers ensureMinimum.
func (p *Pool[T]) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	if p.cfg.EvictionRunInterval > 0 {
		p.startEvictorLocked()
	}
	p.ensureMinimumLocked()
	p.mu.Unlock()
	p.cv.Broadcast()
	return nil
}

// Ready blocks until the available cache holds at least Min resources, or
// ctx is done.
func (p *Pool[T]) Ready(ctx context.Context) error {
	return p.waitUntil(ctx, func() bool { return p.available.Len() >= p.cfg.Min })
}

// Drain stops accepting new waiters, de-schedules the evictor, waits for
// every existing waiter to settle through the normal dispensing path, then
// waits for every outstanding loan to be returned or destroyed.
func (p *Pool[T]) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	p.stopEvictorLocked()
	p.mu.Unlock()
	p.cv.Broadcast()

	if err := p.waitUntil(ctx, func() bool { return p.waiters.Len() == 0 }); err != nil {
		return err
	}
	return p.waitUntil(ctx, func() bool { return len(p.loans) == 0 })
}

// Clear waits for pending creations to settle, then destroys every idle
// resource and waits for all of those destroys to settle. If the pool is
// not draining, it re-creates up to Min afterward.
func (p *Pool[T]) Clear(ctx context.Context) error {
	if err := p.waitUntil(ctx, func() bool { return p.creating == 0 }); err != nil {
		return err
	}

	p.mu.Lock()
	var toDestroy []*resource.Pooled[T]
	for {
		pooled := p.available.Shift()
		if pooled == nil {
			break
		}
		toDestroy = append(toDestroy, pooled)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, pooled := range toDestroy {
		wg.Add(1)
		go func(r *resource.Pooled[T]) {
			defer wg.Done()
			p.destroyPooled(ctx, r)
		}(pooled)
	}
	wg.Wait()

	p.mu.Lock()
	if !p.draining {
		p.ensureMinimumLocked()
	}
	p.mu.Unlock()
	p.cv.Broadcast()
	return nil
}

// OnFactoryCreateError registers a handler for factory Create failures.
func (p *Pool[T]) OnFactoryCreateError(handler func(error)) {
	p.events.OnFactoryCreateError(handler)
}

// OnFactoryDestroyError registers a handler for factory Destroy failures.
func (p *Pool[T]) OnFactoryDestroyError(handler func(error)) {
	p.events.OnFactoryDestroyError(handler)
}

// --- introspection -----------------------------------------------------

// Size returns the number of resources currently known to the pool (any
// state).
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allResources)
}

// Available returns the number of idle resources.
func (p *Pool[T]) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available.Len()
}

// Borrowed returns the number of resources currently on loan.
func (p *Pool[T]) Borrowed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.loans)
}

// Pending returns the number of waiters queued for a resource.
func (p *Pool[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiters.Len()
}

// SpareResourceCapacity returns how many more resources could be created
// right now without exceeding Max.
func (p *Pool[T]) SpareResourceCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spareCapacityLocked()
}

// Max returns the configured ceiling.
func (p *Pool[T]) Max() int { return p.cfg.Max }

// Min returns the configured floor.
func (p *Pool[T]) Min() int { return p.cfg.Min }

// --- internals -----------------------------------------------------------

func (p *Pool[T]) spareCapacityLocked() int {
	spare := p.cfg.Max - (len(p.allResources) + p.creating)
	if spare < 0 {
		return 0
	}
	return spare
}

func (p *Pool[T]) pushAvailableLocked(pooled *resource.Pooled[T]) {
	if p.cfg.FIFO {
		p.available.Push(pooled)
	} else {
		p.available.Unshift(pooled)
	}
}

// dispenseLocked is the dispensing algorithm: it runs after any event that
// could unblock a waiter. Caller must hold p.mu.
func (p *Pool[T]) dispenseLocked() {
	w := p.waiters.Len()
	if w == 0 {
		return
	}

	potential := p.available.Len() + len(p.testingOnBorrow) + p.creating
	shortfall := w - potential
	if shortfall < 0 {
		shortfall = 0
	}
	toCreate := 0
	if !p.draining {
		toCreate = minInt(p.spareCapacityLocked(), shortfall)
	}
	for i := 0; i < toCreate; i++ {
		p.startCreateLocked()
	}

	if p.cfg.TestOnBorrow {
		need := w - len(p.testingOnBorrow)
		n := minInt(p.available.Len(), need)
		for i := 0; i < n; i++ {
			pooled := p.available.Shift()
			if pooled == nil {
				break
			}
			if err := pooled.BeginTest(); err != nil {
				continue
			}
			p.testingOnBorrow[pooled] = struct{}{}
			p.startValidateLocked(pooled)
		}
		return
	}

	n := minInt(p.available.Len(), w)
	for i := 0; i < n; i++ {
		pooled := p.available.Shift()
		if pooled == nil {
			break
		}
		p.dispatchToNextWaiterLocked(pooled)
	}
}

// dispatchToNextWaiterLocked assumes pooled is currently IDLE. Caller must
// hold p.mu.
func (p *Pool[T]) dispatchToNextWaiterLocked(pooled *resource.Pooled[T]) {
	req := p.waiters.Dequeue()
	if req == nil || req.Settled() {
		p.available.Unshift(pooled)
		return
	}

	ln := loan.New(pooled)
	p.loans[pooled.Handle] = ln
	if err := pooled.Allocate(); err != nil {
		delete(p.loans, pooled.Handle)
		req.Reject(err)
		return
	}
	req.Resolve(pooled.Handle)
}

// startCreateLocked starts one factory.Create call, tracked in p.creating.
// Caller must hold p.mu.
func (p *Pool[T]) startCreateLocked() {
	p.creating++
	go func() {
		handle, err := p.factory.Create(context.Background())

		p.mu.Lock()
		p.creating--
		if err != nil {
			p.mu.Unlock()
			p.cfg.Logger.Warn().Err(err).Msg("pool: factory create failed")
			p.events.emitCreateError(newFactoryCreateError(err))
			p.mu.Lock()
			p.dispenseLocked()
			p.mu.Unlock()
			p.cv.Broadcast()
			return
		}

		pooled := resource.New(handle)
		p.allResources[pooled] = struct{}{}
		p.pushAvailableLocked(pooled)
		p.dispenseLocked()
		p.mu.Unlock()
		p.cv.Broadcast()
	}()
}

// startValidateLocked starts one factory.Validate call for a resource moved
// into testingOnBorrow. Caller must hold p.mu.
func (p *Pool[T]) startValidateLocked(pooled *resource.Pooled[T]) {
	go func() {
		valid := p.safeValidate(context.Background(), pooled.Handle)

		p.mu.Lock()
		delete(p.testingOnBorrow, pooled)
		if valid {
			_ = pooled.ToIdle()
			p.dispatchToNextWaiterLocked(pooled)
			p.mu.Unlock()
			p.cv.Broadcast()
			return
		}
		p.mu.Unlock()

		p.destroyPooled(context.Background(), pooled)
		p.mu.Lock()
		p.dispenseLocked()
		p.mu.Unlock()
		p.cv.Broadcast()
	}()
}

// safeValidate calls factory.Validate, treating a panic as a validation
// failure so a misbehaving validator cannot take down the engine.
func (p *Pool[T]) safeValidate(ctx context.Context, res T) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			valid = false
			p.cfg.Logger.Warn().Interface("panic", r).Msg("pool: validator panicked, treating as invalid")
		}
	}()
	return p.factory.Validate(ctx, res)
}

// destroyPooled runs the destruction pipeline: invalidate, unlink from
// allResources, call factory.Destroy (racing a timer if DestroyTimeout is
// set), emit on failure, then ensureMinimum. Must be called without holding
// p.mu; it takes the lock itself for the bookkeeping steps.
func (p *Pool[T]) destroyPooled(ctx context.Context, pooled *resource.Pooled[T]) {
	pooled.Invalidate()

	p.mu.Lock()
	delete(p.allResources, pooled)
	p.destroying++
	p.mu.Unlock()

	destroyCtx := ctx
	if destroyCtx == nil {
		destroyCtx = context.Background()
	}
	var cancel context.CancelFunc
	if p.cfg.DestroyTimeout > 0 {
		destroyCtx, cancel = context.WithTimeout(destroyCtx, p.cfg.DestroyTimeout)
	}

	// Race the factory call against the timeout instead of just awaiting it:
	// a non-cooperating factory (one that ignores ctx) must not be able to
	// hang destroyPooled, and therefore Drain/Clear, forever.
	done := make(chan error, 1)
	go func() { done <- p.factory.Destroy(destroyCtx, pooled.Handle) }()

	var err error
	if p.cfg.DestroyTimeout > 0 {
		select {
		case err = <-done:
		case <-time.After(p.cfg.DestroyTimeout):
			err = newDestroyTimeoutError()
		}
	} else {
		err = <-done
	}
	if cancel != nil {
		cancel()
	}
	if err != nil {
		var timeoutErr *DestroyTimeoutError
		if !errors.As(err, &timeoutErr) {
			err = newFactoryDestroyError(err)
		}
		p.cfg.Logger.Warn().Err(err).Msg("pool: factory destroy failed")
		p.events.emitDestroyError(err)
	}

	p.mu.Lock()
	p.destroying--
	p.ensureMinimumLocked()
	p.mu.Unlock()
	p.cv.Broadcast()
}

// ensureMinimumLocked starts enough creations to bring allResources+creating
// up to Min, if started and not draining. Caller must hold p.mu.
func (p *Pool[T]) ensureMinimumLocked() {
	if !p.started || p.draining {
		return
	}
	deficit := p.cfg.Min - (len(p.allResources) + p.creating)
	for i := 0; i < deficit; i++ {
		p.startCreateLocked()
	}
}

func (p *Pool[T]) watchTimeout(req *deferred.Request[T], handle waitqueue.Handle[T]) {
	<-req.Future().Done()
	_, err := req.Future().Result()
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		p.mu.Lock()
		p.waiters.Remove(handle)
		p.dispenseLocked()
		p.mu.Unlock()
		p.cv.Broadcast()
	}
}

func (p *Pool[T]) startEvictorLocked() {
	if p.evictionCursor == nil {
		p.evictionCursor = p.available.NewCursor()
	}
	stop := make(chan struct{})
	p.evictionStop = stop
	interval := p.cfg.EvictionRunInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.runEvictionPass()
			case <-stop:
				return
			}
		}
	}()
}

func (p *Pool[T]) stopEvictorLocked() {
	if p.evictionStop != nil {
		close(p.evictionStop)
		p.evictionStop = nil
	}
}

// runEvictionPass performs up to NumTestsPerEvictionRun steps, advancing the
// persistent eviction cursor over available. The cursor remains valid
// across destroys and unrelated cache mutations.
func (p *Pool[T]) runEvictionPass() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cfg := evictor.Config{
		SoftIdleTimeout: p.cfg.SoftIdleTimeout,
		IdleTimeout:     p.cfg.IdleTimeout,
		Min:             p.cfg.Min,
	}

	var toDestroy []*resource.Pooled[T]
	now := time.Now()
	for i := 0; i < p.cfg.NumTestsPerEvictionRun; i++ {
		if p.available.Len() == 0 {
			break
		}
		pooled, ok := p.evictionCursor.Next()
		if !ok {
			break
		}
		if evictor.ShouldEvict(cfg, pooled.LastIdleAt(), now, p.available.Len()) {
			p.available.Remove(p.evictionCursor.Current())
			toDestroy = append(toDestroy, pooled)
		}
	}
	p.mu.Unlock()

	for _, pooled := range toDestroy {
		p.destroyPooled(context.Background(), pooled)
	}
}

// waitUntil blocks until cond() is true or ctx is done, re-checking cond
// each time p.cv is broadcast.
func (p *Pool[T]) waitUntil(ctx context.Context, cond func() bool) error {
	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cv.Broadcast()
				p.mu.Unlock()
			case <-stop:
			}
		}()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for !cond() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		p.cv.Wait()
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
