package provider

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is the breaker state for one provider.
type CircuitState int

const (
	// CircuitClosed - calls flow normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen - calls are rejected without invoking the provider.
	CircuitOpen
	// CircuitHalfOpen - exactly one probe call is in flight.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CircuitConfig configures one provider's breaker.
type CircuitConfig struct {
	FailureThreshold int           // consecutive failures before opening
	BaseCooldown     time.Duration // first open cooldown
	MaxCooldown      time.Duration // cap for doubled cooldowns
}

// DefaultCircuitConfig returns the stock breaker settings.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		BaseCooldown:     30 * time.Second,
		MaxCooldown:      8 * time.Minute,
	}
}

// Circuit is a per-provider breaker shared across concurrent callers.
// Transitions are monotonic: open never returns to closed without a
// half-open probe succeeding first. The cooldown doubles on every re-open
// and resets only when the circuit closes.
type Circuit struct {
	mu sync.Mutex

	cfg                 CircuitConfig
	state               CircuitState
	consecutiveFailures int
	cooldown            time.Duration
	cooldownUntil       time.Time

	now func() time.Time // test hook
}

// NewCircuit creates a closed circuit.
func NewCircuit(cfg CircuitConfig) *Circuit {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultCircuitConfig().FailureThreshold
	}
	if cfg.BaseCooldown <= 0 {
		cfg.BaseCooldown = DefaultCircuitConfig().BaseCooldown
	}
	if cfg.MaxCooldown < cfg.BaseCooldown {
		cfg.MaxCooldown = DefaultCircuitConfig().MaxCooldown
	}
	return &Circuit{
		cfg:      cfg,
		state:    CircuitClosed,
		cooldown: cfg.BaseCooldown,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed. When the cooldown of an open
// circuit has elapsed it admits exactly one caller as the half-open probe.
func (c *Circuit) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if c.now().Before(c.cooldownUntil) {
			return false
		}
		c.state = CircuitHalfOpen
		return true
	case CircuitHalfOpen:
		// A probe is already in flight.
		return false
	}
	return false
}

// RecordSuccess notes one successful completed call.
func (c *Circuit) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	if c.state == CircuitHalfOpen {
		c.state = CircuitClosed
		c.cooldown = c.cfg.BaseCooldown
	}
}

// RecordFailure notes one completed call that exhausted its retries. A
// failed probe re-opens with a doubled cooldown.
func (c *Circuit) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitHalfOpen:
		c.reopen(true)
	case CircuitClosed:
		c.consecutiveFailures++
		if c.consecutiveFailures >= c.cfg.FailureThreshold {
			c.reopen(false)
		}
	case CircuitOpen:
		// Late failure from a call admitted before opening; the clock is
		// already running.
	}
}

// RecordAbandon returns an admitted probe slot without judging the
// provider. Used when the caller cancelled mid-call: the cooldown clock has
// already elapsed, so the next Allow admits a fresh probe.
func (c *Circuit) RecordAbandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
	}
}

// reopen transitions to open and restarts the cooldown clock. Caller holds
// the lock.
func (c *Circuit) reopen(double bool) {
	if double {
		c.cooldown *= 2
		if c.cooldown > c.cfg.MaxCooldown {
			c.cooldown = c.cfg.MaxCooldown
		}
	}
	c.state = CircuitOpen
	c.cooldownUntil = c.now().Add(c.cooldown)
}

// State returns the current state for observability.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns state details for the progress surface.
func (c *Circuit) Snapshot() (state CircuitState, failures int, cooldownUntil time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.consecutiveFailures, c.cooldownUntil
}
