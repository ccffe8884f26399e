package pool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pool "resourcepool"
)

type resourceID int32

func counterFactory(createErr, destroyErr error) (*pool.FactoryFuncs[resourceID], *int64, *int64) {
	var nextID int64
	var createCalls, destroyCalls int64
	f := &pool.FactoryFuncs[resourceID]{
		CreateFunc: func(ctx context.Context) (resourceID, error) {
			atomic.AddInt64(&createCalls, 1)
			if createErr != nil {
				return 0, createErr
			}
			return resourceID(atomic.AddInt64(&nextID, 1)), nil
		},
		DestroyFunc: func(ctx context.Context, r resourceID) error {
			atomic.AddInt64(&destroyCalls, 1)
			return destroyErr
		},
	}
	return f, &createCalls, &destroyCalls
}

func TestPool(t *testing.T) {
	t.Parallel()

	t.Run("When the pool is constructed with defaults, max is 1 and it starts empty", func(t *testing.T) {
		t.Parallel()
		factory, _, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory)
		require.NoError(t, err)
		require.Equal(t, 1, p.Max())
		require.Equal(t, 0, p.Min())
		require.Equal(t, 0, p.Size())
	})

	t.Run("When there is no idle resource, acquire creates one from scratch via the factory", func(t *testing.T) {
		t.Parallel()
		factory, createCalls, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		r1, err := p.Acquire(context.Background(), 0)
		require.NoError(t, err)
		require.Equal(t, int64(1), atomic.LoadInt64(createCalls))
		require.Equal(t, 1, p.Borrowed())
		require.Equal(t, 0, p.Available())

		require.NoError(t, p.Release(context.Background(), r1))
		require.Equal(t, 0, p.Borrowed())
		require.Equal(t, 1, p.Available())

		require.NoError(t, p.Drain(context.Background()))
		require.NoError(t, p.Clear(context.Background()))
		require.Equal(t, int64(1), atomic.LoadInt64(createCalls))
	})

	t.Run("When max is reached, a second acquire pends until the first is released, then reuses the same resource", func(t *testing.T) {
		t.Parallel()
		factory, createCalls, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		r1, err := p.Acquire(context.Background(), 0)
		require.NoError(t, err)

		type result struct {
			res resourceID
			err error
		}
		done := make(chan result, 1)
		go func() {
			r, err := p.Acquire(context.Background(), 0)
			done <- result{r, err}
		}()

		require.Eventually(t, func() bool { return p.Pending() == 1 }, time.Second, time.Millisecond)
		require.Equal(t, 1, p.Borrowed())

		require.NoError(t, p.Release(context.Background(), r1))

		select {
		case got := <-done:
			require.NoError(t, got.err)
			require.Equal(t, r1, got.res)
		case <-time.After(time.Second):
			t.Fatal("second acquire never resolved")
		}
		require.Equal(t, int64(1), atomic.LoadInt64(createCalls))
	})

	t.Run("When destroy is called on a borrowed resource, it is removed entirely instead of re-idled", func(t *testing.T) {
		t.Parallel()
		factory, _, destroyCalls := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		r1, err := p.Acquire(context.Background(), 0)
		require.NoError(t, err)

		require.NoError(t, p.Destroy(context.Background(), r1))
		require.Equal(t, 0, p.Borrowed())
		require.Equal(t, 0, p.Available())
		require.Equal(t, 0, p.Size())
		require.Equal(t, int64(1), atomic.LoadInt64(destroyCalls))
	})

	t.Run("When Use succeeds, the resource returns to the available cache", func(t *testing.T) {
		t.Parallel()
		factory, _, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		got, err := pool.Use(context.Background(), p, 0, func(r resourceID) (string, error) {
			return "X", nil
		})
		require.NoError(t, err)
		require.Equal(t, "X", got)
		require.Equal(t, 0, p.Borrowed())
		require.Equal(t, 1, p.Available())
	})

	t.Run("When Use fails, the resource is destroyed instead of re-idled and the error propagates", func(t *testing.T) {
		t.Parallel()
		factory, _, destroyCalls := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		_, err = pool.Use(context.Background(), p, 0, func(r resourceID) (string, error) {
			return "", context.DeadlineExceeded
		})
		require.Error(t, err)
		require.Equal(t, 0, p.Borrowed())
		require.Equal(t, 0, p.Available())
		require.Equal(t, 0, p.Size())
		require.Equal(t, int64(1), atomic.LoadInt64(destroyCalls))
	})

	t.Run("When an acquire isn't satisfied before acquireTimeout, it rejects with TimeoutError and clears from pending", func(t *testing.T) {
		t.Parallel()
		factory, _, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1), pool.WithAcquireTimeout(50*time.Millisecond))
		require.NoError(t, err)

		_, err = p.Acquire(context.Background(), 0)
		require.NoError(t, err)

		_, err = p.Acquire(context.Background(), 0)
		require.Error(t, err)
		var timeoutErr *pool.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)

		require.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, time.Millisecond)
	})

	t.Run("When waiters of different priorities queue up, release resolves them highest priority first", func(t *testing.T) {
		t.Parallel()
		factory, _, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1), pool.WithPriorityRange(3))
		require.NoError(t, err)

		r1, err := p.Acquire(context.Background(), 0)
		require.NoError(t, err)

		order := make(chan string, 3)
		launch := func(name string, priority int) {
			go func() {
				r, err := p.Acquire(context.Background(), priority)
				if err == nil {
					order <- name
					_ = p.Release(context.Background(), r)
				}
			}()
		}
		launch("A", 2)
		launch("B", 0)
		launch("C", 1)

		require.Eventually(t, func() bool { return p.Pending() == 3 }, time.Second, time.Millisecond)
		require.NoError(t, p.Release(context.Background(), r1))

		var got []string
		for i := 0; i < 3; i++ {
			select {
			case name := <-order:
				got = append(got, name)
			case <-time.After(time.Second):
				t.Fatal("waiter never resolved")
			}
		}
		require.Equal(t, []string{"B", "C", "A"}, got)
	})

	t.Run("When ensureMinimum is configured, the pool pre-creates up to min on start", func(t *testing.T) {
		t.Parallel()
		factory, createCalls, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(3), pool.WithMin(2))
		require.NoError(t, err)

		require.NoError(t, p.Ready(context.Background()))
		require.Equal(t, int64(2), atomic.LoadInt64(createCalls))
		require.Equal(t, 2, p.Available())
	})

	t.Run("When clear is called, every idle resource is destroyed and min is re-created afterward", func(t *testing.T) {
		t.Parallel()
		factory, _, destroyCalls := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(2), pool.WithMin(1))
		require.NoError(t, err)
		require.NoError(t, p.Ready(context.Background()))

		require.NoError(t, p.Clear(context.Background()))
		require.Equal(t, int64(1), atomic.LoadInt64(destroyCalls))
		require.NoError(t, p.Ready(context.Background()))
		require.Equal(t, 1, p.Available())
	})

	t.Run("When a factory create fails, the event fires and the slot is not consumed", func(t *testing.T) {
		t.Parallel()
		factory, createCalls, _ := counterFactory(context.Canceled, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1), pool.WithAcquireTimeout(100*time.Millisecond))
		require.NoError(t, err)

		var gotErr atomic.Value
		p.OnFactoryCreateError(func(err error) { gotErr.Store(err) })

		_, err = p.Acquire(context.Background(), 0)
		require.Error(t, err)
		require.Eventually(t, func() bool { return gotErr.Load() != nil }, time.Second, time.Millisecond)
		require.True(t, atomic.LoadInt64(createCalls) >= 1)
		require.Equal(t, 0, p.Size())
	})

	t.Run("When drain is engaged, further acquires fail and it resolves once loans settle", func(t *testing.T) {
		t.Parallel()
		factory, _, _ := counterFactory(nil, nil)
		p, err := pool.New[resourceID](factory, pool.WithMax(1))
		require.NoError(t, err)

		r1, err := p.Acquire(context.Background(), 0)
		require.NoError(t, err)

		drained := make(chan error, 1)
		go func() { drained <- p.Drain(context.Background()) }()

		time.Sleep(20 * time.Millisecond)
		_, err = p.Acquire(context.Background(), 0)
		require.Error(t, err)
		var drainingErr *pool.DrainingError
		require.ErrorAs(t, err, &drainingErr)

		require.NoError(t, p.Release(context.Background(), r1))

		select {
		case err := <-drained:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("drain never resolved")
		}
	})
}
