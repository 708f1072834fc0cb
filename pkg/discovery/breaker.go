package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsforge/opsforge/pkg/telemetry"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the failure count that opens the breaker.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker again.
	SuccessThreshold int

	// RecoveryTimeout is how long an open breaker rejects calls before
	// letting a probe through.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

// CircuitOpenError is returned when a call is rejected because the
// breaker for its service is open.
type CircuitOpenError struct {
	// Service is the guarded service name.
	Service string

	// OpenedAt is when the breaker tripped.
	OpenedAt time.Time

	// RetryAfter is how long until a probe call will be admitted.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for service %s, retry in %s", e.Service, e.RetryAfter.Round(time.Second))
}

// Breaker is the circuit breaker state machine for one service.
//
// Closed is the normal state: failures count up and each success heals
// one failure, so only a sustained failure streak reaches the threshold.
// Once open, every call is rejected until the recovery timeout elapses;
// the first call after that flips the breaker to half-open and is let
// through as a probe. Enough consecutive probe successes close the
// breaker, a single probe failure reopens it for another full timeout.
type Breaker struct {
	service string
	cfg     BreakerConfig
	logger  *telemetry.Logger

	// OnTransition, when set, is called with the old and new state on
	// every change. It runs under the breaker lock and must not call
	// back into the breaker. Set it before first use.
	OnTransition func(from, to State)

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	nextAttempt  time.Time
}

// BreakerSnapshot is a point-in-time view of a breaker for status
// surfaces.
type BreakerSnapshot struct {
	Service      string    `json:"service"`
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	OpenedAt     time.Time `json:"opened_at"`
	NextAttempt  time.Time `json:"next_attempt"`
}

// NewBreaker creates a breaker for one service. Zero config fields fall
// back to DefaultBreakerConfig values.
func NewBreaker(service string, cfg BreakerConfig, logger *telemetry.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Breaker{
		service: service,
		cfg:     cfg,
		logger:  logger,
		state:   StateClosed,
	}
}

// Allow reports whether a call may proceed right now. An open breaker
// rejects with CircuitOpenError until the recovery timeout elapses; the
// first call at or after that instant flips the breaker to half-open
// and is admitted as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		now := time.Now()
		if now.Before(b.nextAttempt) {
			return &CircuitOpenError{
				Service:    b.service,
				OpenedAt:   b.openedAt,
				RetryAfter: b.nextAttempt.Sub(now),
			}
		}
		b.successCount = 0
		b.transition(StateHalfOpen)
	}
	return nil
}

// RecordSuccess feeds a successful call into the state machine. In the
// closed state each success heals one failure, so transient blips never
// accumulate into a trip.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			b.transition(StateClosed)
		}
	}
}

// RecordFailure feeds a failed call into the state machine. Reaching the
// failure threshold in the closed state opens the breaker; any failure
// in the half-open state reopens it for another full recovery timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's current counters and timing.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Service:      b.service,
		State:        b.state.String(),
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		OpenedAt:     b.openedAt,
		NextAttempt:  b.nextAttempt,
	}
}

// trip opens the breaker and stamps the next attempt time. Caller holds
// the lock.
func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.nextAttempt = b.openedAt.Add(b.cfg.RecoveryTimeout)
	b.successCount = 0
	b.transition(StateOpen)
}

// transition changes state, logs and fires the hook. Caller holds the
// lock.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	log := b.logger.WithService(b.service)
	if to == StateOpen {
		log.Warnf("Circuit breaker opened after %d failures, next attempt at %s",
			b.failureCount, b.nextAttempt.Format(time.RFC3339))
	} else {
		log.Infof("Circuit breaker %s, was %s", to, from)
	}

	if b.OnTransition != nil {
		b.OnTransition(from, to)
	}
}
