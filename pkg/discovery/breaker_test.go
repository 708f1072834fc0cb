package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/opsforge/opsforge/pkg/telemetry"
)

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "fatal", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

func testBreaker(t *testing.T, cfg BreakerConfig) *Breaker {
	t.Helper()
	return NewBreaker("executor", cfg, testLogger(t))
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := testBreaker(t, BreakerConfig{})

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("Expected closed after 2 failures, got %s", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("Expected open after 3 failures, got %s", b.State())
	}

	err := b.Allow()
	if err == nil {
		t.Fatal("Expected open breaker to reject calls")
	}
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Expected CircuitOpenError, got %T", err)
	}
	if openErr.Service != "executor" {
		t.Errorf("Expected service executor, got %s", openErr.Service)
	}
	if openErr.RetryAfter <= 0 {
		t.Errorf("Expected positive retry-after, got %s", openErr.RetryAfter)
	}
}

func TestBreakerSuccessHealsFailures(t *testing.T) {
	b := testBreaker(t, BreakerConfig{})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("Expected closed while below threshold, got %s", b.State())
	}
	if got := b.Snapshot().FailureCount; got != 2 {
		t.Errorf("Expected failure count 2, got %d", got)
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("Expected open after reaching threshold, got %s", b.State())
	}
}

func TestBreakerSuccessFloorsAtZero(t *testing.T) {
	b := testBreaker(t, BreakerConfig{})

	b.RecordSuccess()
	b.RecordSuccess()
	if got := b.Snapshot().FailureCount; got != 0 {
		t.Errorf("Expected failure count 0, got %d", got)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := testBreaker(t, BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
	})

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("Expected open, got %s", b.State())
	}
	if err := b.Allow(); err == nil {
		t.Fatal("Expected rejection before the recovery timeout")
	}

	time.Sleep(30 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Expected probe call after the recovery timeout, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("Expected half_open, got %s", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("Expected half_open after one success, got %s", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("Expected closed after two successes, got %s", b.State())
	}

	snap := b.Snapshot()
	if snap.FailureCount != 0 || snap.SuccessCount != 0 {
		t.Errorf("Expected counters reset on close, got failures=%d successes=%d",
			snap.FailureCount, snap.SuccessCount)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := testBreaker(t, BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
	})

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Expected probe call, got %v", err)
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("Expected reopen on probe failure, got %s", b.State())
	}
	if err := b.Allow(); err == nil {
		t.Fatal("Expected rejection for a fresh recovery timeout after reopen")
	}
}

func TestBreakerTransitionHook(t *testing.T) {
	b := testBreaker(t, BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
	})

	var transitions []string
	b.OnTransition = func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Expected probe call, got %v", err)
	}
	b.RecordSuccess()

	want := []string{"closed>open", "open>half_open", "half_open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("Expected %d transitions, got %v", len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreakerDefaults(t *testing.T) {
	cfg := DefaultBreakerConfig()
	if cfg.FailureThreshold != 3 {
		t.Errorf("Expected failure threshold 3, got %d", cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold != 2 {
		t.Errorf("Expected success threshold 2, got %d", cfg.SuccessThreshold)
	}
	if cfg.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected recovery timeout 60s, got %s", cfg.RecoveryTimeout)
	}
}
