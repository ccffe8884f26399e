package pool

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds pool tuning options. New starts from DefaultConfig, applies
// the With* option functions over it, and then clamps the result with
// normalize; a zero value set through an option is kept as given unless
// normalize clamps it.
type Config struct {
	// Max is the absolute ceiling on allResources+creating. Clamped to
	// at least 1. Default 1.
	Max int

	// Min is the floor ensureMinimum targets. Clamped to [0, Max].
	// Default 0.
	Min int

	// FIFO selects the idle-cache dispense order: true dispenses the
	// oldest idle resource first, false the most recently returned.
	// Default true.
	FIFO bool

	// PriorityRange is the number of priority slots in the waiter
	// queue. Default 1.
	PriorityRange int

	// MaxWaitingClients caps the waiter queue length; 0 means
	// unbounded. Default 0 (unbounded).
	MaxWaitingClients int

	// AcquireTimeout is the per-request timeout; 0 means no timeout.
	// Default 0.
	AcquireTimeout time.Duration

	// DestroyTimeout is the per-destroy timeout; 0 means no timeout.
	// Default 0.
	DestroyTimeout time.Duration

	// TestOnBorrow validates a resource before dispatch.
	TestOnBorrow bool

	// TestOnReturn validates a resource before it re-enters the idle
	// cache.
	TestOnReturn bool

	// EvictionRunInterval is how often the background evictor runs; 0
	// disables it. Default 0.
	EvictionRunInterval time.Duration

	// NumTestsPerEvictionRun bounds how many idle resources a single
	// eviction pass inspects. Default 3.
	NumTestsPerEvictionRun int

	// SoftIdleTimeout is the soft eviction threshold, subject to the
	// Min floor; <= 0 disables it. Default -1 (disabled).
	SoftIdleTimeout time.Duration

	// IdleTimeout is the hard eviction threshold; <= 0 disables it.
	// Default 30s.
	IdleTimeout time.Duration

	// Autostart runs Start() at construction when true. Default true.
	Autostart bool

	// Logger receives structured diagnostics: factory create and destroy
	// failures and validator panics. Drain, clear and eviction are not
	// logged. Default zerolog.Nop(), silent.
	Logger zerolog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Max:                    1,
		Min:                    0,
		FIFO:                   true,
		PriorityRange:          1,
		MaxWaitingClients:      0,
		NumTestsPerEvictionRun: 3,
		SoftIdleTimeout:        -1,
		IdleTimeout:            30 * time.Second,
		Autostart:              true,
		Logger:                 zerolog.Nop(),
	}
}

// normalize clamps interdependent fields: Max >= 1, Min in [0, Max],
// PriorityRange >= 1, NumTestsPerEvictionRun >= 0.
func (c Config) normalize() Config {
	if c.Max < 1 {
		c.Max = 1
	}
	if c.Min < 0 {
		c.Min = 0
	}
	if c.Min > c.Max {
		c.Min = c.Max
	}
	if c.PriorityRange < 1 {
		c.PriorityRange = 1
	}
	if c.NumTestsPerEvictionRun < 0 {
		c.NumTestsPerEvictionRun = 0
	}
	return c
}

// Option mutates a Config being built by New.
type Option func(*Config)

// WithMax sets the absolute ceiling on live+in-flight resources.
func WithMax(max int) Option { return func(c *Config) { c.Max = max } }

// WithMin sets the floor ensureMinimum targets.
func WithMin(min int) Option { return func(c *Config) { c.Min = min } }

// WithFIFO selects FIFO (true) or LIFO (false) idle dispense order.
func WithFIFO(fifo bool) Option { return func(c *Config) { c.FIFO = fifo } }

// WithPriorityRange sets the number of waiter priority slots.
func WithPriorityRange(n int) Option { return func(c *Config) { c.PriorityRange = n } }

// WithMaxWaitingClients caps the waiter queue length.
func WithMaxWaitingClients(n int) Option { return func(c *Config) { c.MaxWaitingClients = n } }

// WithAcquireTimeout sets the per-request timeout.
func WithAcquireTimeout(d time.Duration) Option { return func(c *Config) { c.AcquireTimeout = d } }

// WithDestroyTimeout sets the per-destroy timeout.
func WithDestroyTimeout(d time.Duration) Option { return func(c *Config) { c.DestroyTimeout = d } }

// WithTestOnBorrow enables or disables validate-before-dispatch.
func WithTestOnBorrow(b bool) Option { return func(c *Config) { c.TestOnBorrow = b } }

// WithTestOnReturn enables or disables validate-before-reidle.
func WithTestOnReturn(b bool) Option { return func(c *Config) { c.TestOnReturn = b } }

// WithEvictionRunInterval sets the background evictor's run period; 0
// disables it.
func WithEvictionRunInterval(d time.Duration) Option {
	return func(c *Config) { c.EvictionRunInterval = d }
}

// WithNumTestsPerEvictionRun bounds the number of idle resources a single
// eviction pass inspects.
func WithNumTestsPerEvictionRun(n int) Option {
	return func(c *Config) { c.NumTestsPerEvictionRun = n }
}

// WithSoftIdleTimeout sets the soft eviction threshold.
func WithSoftIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.SoftIdleTimeout = d }
}

// WithIdleTimeout sets the hard eviction threshold.
func WithIdleTimeout(d time.Duration) Option { return func(c *Config) { c.IdleTimeout = d } }

// WithAutostart controls whether New calls Start automatically.
func WithAutostart(b bool) Option { return func(c *Config) { c.Autostart = b } }

// WithLogger attaches a structured logger for engine diagnostics.
func WithLogger(logger zerolog.Logger) Option { return func(c *Config) { c.Logger = logger } }
