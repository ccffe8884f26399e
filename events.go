package pool

import "sync"

// eventEmitter is the simple publish/subscribe collaborator the engine uses
// to report factory errors it has already consumed internally. Handlers run
// synchronously on the emitting goroutine, so the emitter blocks until every
// handler returns; they are expected to be cheap (e.g. forward to a logger
// or metric), matching the teacher pack's low-ceremony event plumbing.
type eventEmitter struct {
	mu               sync.RWMutex
	onCreateError    []func(error)
	onDestroyError   []func(error)
}

// OnFactoryCreateError registers a handler invoked whenever a factory
// Create call fails during the creation pipeline.
func (e *eventEmitter) OnFactoryCreateError(handler func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCreateError = append(e.onCreateError, handler)
}

// OnFactoryDestroyError registers a handler invoked whenever a factory
// Destroy call fails (or times out) during the destruction pipeline.
func (e *eventEmitter) OnFactoryDestroyError(handler func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDestroyError = append(e.onDestroyError, handler)
}

func (e *eventEmitter) emitCreateError(err error) {
	e.mu.RLock()
	handlers := append([]func(error){}, e.onCreateError...)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}

func (e *eventEmitter) emitDestroyError(err error) {
	e.mu.RLock()
	handlers := append([]func(error){}, e.onDestroyError...)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}
