// Package evictor implements the pure idle-eviction policy: given a
// configuration and an idle resource's age, decide whether to destroy it.
package evictor

import "time"

// Config is the subset of pool configuration the eviction policy needs.
type Config struct {
	SoftIdleTimeout time.Duration
	IdleTimeout     time.Duration
	Min             int
}

// ShouldEvict reports whether a resource idle since lastIdleAt should be
// destroyed, given the current availableCount. now is passed in rather than
// read from time.Now so the decision is deterministic and testable.
func ShouldEvict(cfg Config, lastIdleAt, now time.Time, availableCount int) bool {
	idleFor := now.Sub(lastIdleAt)

	if cfg.SoftIdleTimeout > 0 && idleFor > cfg.SoftIdleTimeout && availableCount > cfg.Min {
		return true
	}
	if cfg.IdleTimeout > 0 && idleFor > cfg.IdleTimeout {
		return true
	}
	return false
}
