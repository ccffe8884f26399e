// Command poolstress drives a resource pool through the full lifecycle:
// churning acquires/releases under priority, provoking timeouts, running
// eviction, and draining, so the engine can be exercised end to end
// outside of unit tests.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	pool "resourcepool"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		maxResources    int
		minResources    int
		workers         int
		duration        time.Duration
		acquireTimeout  time.Duration
		priorityRange   int
		testOnBorrow    bool
		evictionRun     time.Duration
		idleTimeout     time.Duration
		createLatency   time.Duration
		createFailRatio float64
	)

	cmd := &cobra.Command{
		Use:   "poolstress",
		Short: "Load-generate against a resourcepool.Pool to exercise its lifecycle end to end",
		Long: `poolstress spins up a pool of simulated resources and a fleet of worker
goroutines that repeatedly acquire, hold briefly, and release (or
occasionally destroy) them at random priorities, while the evictor runs in
the background. At the end it drains and clears the pool and prints a
summary of what happened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), stressConfig{
				maxResources:    maxResources,
				minResources:    minResources,
				workers:         workers,
				duration:        duration,
				acquireTimeout:  acquireTimeout,
				priorityRange:   priorityRange,
				testOnBorrow:    testOnBorrow,
				evictionRun:     evictionRun,
				idleTimeout:     idleTimeout,
				createLatency:   createLatency,
				createFailRatio: createFailRatio,
			})
		},
	}

	cmd.Flags().IntVar(&maxResources, "max", 10, "pool max resources")
	cmd.Flags().IntVar(&minResources, "min", 2, "pool min resources")
	cmd.Flags().IntVar(&workers, "workers", 50, "concurrent acquiring goroutines")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to run the load")
	cmd.Flags().DurationVar(&acquireTimeout, "acquire-timeout", 200*time.Millisecond, "per-acquire timeout")
	cmd.Flags().IntVar(&priorityRange, "priority-range", 3, "number of waiter priority slots")
	cmd.Flags().BoolVar(&testOnBorrow, "test-on-borrow", true, "validate resources before dispatch")
	cmd.Flags().DurationVar(&evictionRun, "eviction-interval", 500*time.Millisecond, "background evictor period")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", time.Second, "hard idle eviction threshold")
	cmd.Flags().DurationVar(&createLatency, "create-latency", 10*time.Millisecond, "simulated factory create latency")
	cmd.Flags().Float64Var(&createFailRatio, "create-fail-ratio", 0.05, "fraction of factory creates that fail")

	return cmd
}

type stressConfig struct {
	maxResources, minResources, workers, priorityRange int
	duration, acquireTimeout, evictionRun, idleTimeout  time.Duration
	createLatency                                      time.Duration
	testOnBorrow                                        bool
	createFailRatio                                     float64
}

type simResource int64

func runStress(ctx context.Context, cfg stressConfig) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var nextID int64
	var creates, createFails, destroys, validations int64

	factory := &pool.FactoryFuncs[simResource]{
		CreateFunc: func(ctx context.Context) (simResource, error) {
			atomic.AddInt64(&creates, 1)
			time.Sleep(cfg.createLatency)
			if rand.Float64() < cfg.createFailRatio {
				atomic.AddInt64(&createFails, 1)
				return 0, fmt.Errorf("simulated factory failure")
			}
			return simResource(atomic.AddInt64(&nextID, 1)), nil
		},
		DestroyFunc: func(ctx context.Context, r simResource) error {
			atomic.AddInt64(&destroys, 1)
			return nil
		},
		ValidateFunc: func(ctx context.Context, r simResource) bool {
			atomic.AddInt64(&validations, 1)
			return true
		},
	}

	p, err := pool.New[simResource](
		factory,
		pool.WithMax(cfg.maxResources),
		pool.WithMin(cfg.minResources),
		pool.WithPriorityRange(cfg.priorityRange),
		pool.WithAcquireTimeout(cfg.acquireTimeout),
		pool.WithTestOnBorrow(cfg.testOnBorrow),
		pool.WithEvictionRunInterval(cfg.evictionRun),
		pool.WithIdleTimeout(cfg.idleTimeout),
		pool.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	p.OnFactoryCreateError(func(err error) { logger.Debug().Err(err).Msg("factory create failed") })
	p.OnFactoryDestroyError(func(err error) { logger.Debug().Err(err).Msg("factory destroy failed") })

	var acquired, timedOut, destroyed int64
	runCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				priority := rand.Intn(cfg.priorityRange)
				res, err := p.Acquire(runCtx, priority)
				if err != nil {
					atomic.AddInt64(&timedOut, 1)
					continue
				}
				atomic.AddInt64(&acquired, 1)
				time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)

				if rand.Float64() < 0.02 {
					_ = p.Destroy(context.Background(), res)
					atomic.AddInt64(&destroyed, 1)
				} else {
					_ = p.Release(context.Background(), res)
				}
			}
		}()
	}
	wg.Wait()

	logger.Info().
		Int64("acquired", acquired).
		Int64("timed_out", timedOut).
		Int64("destroyed_by_caller", destroyed).
		Int64("factory_creates", creates).
		Int64("factory_create_failures", createFails).
		Int64("factory_destroys", destroys).
		Int64("validations", validations).
		Int("final_size", p.Size()).
		Int("final_available", p.Available()).
		Msg("load phase complete, draining")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := p.Drain(drainCtx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if err := p.Clear(drainCtx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	logger.Info().
		Int64("total_factory_destroys", atomic.LoadInt64(&destroys)).
		Msg("drained and cleared")
	return nil
}
