package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterFirstCallImmediate(t *testing.T) {
	clock := newFakeClock()
	slept := time.Duration(-1)
	l := NewRateLimiter(2,
		WithLimiterClock(clock.Now),
		WithLimiterSleep(func(ctx context.Context, d time.Duration) error {
			slept = d
			return nil
		}),
	)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if slept != -1 {
		t.Errorf("first call slept %v, want no sleep", slept)
	}
}

func TestRateLimiterEnforcesSpacing(t *testing.T) {
	// WHAT: with 2 calls/sec, back-to-back Waits are spaced 500ms apart; a
	// third immediate call queues behind the second's reserved slot.
	clock := newFakeClock()
	var sleeps []time.Duration
	l := NewRateLimiter(2,
		WithLimiterClock(clock.Now),
		WithLimiterSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
	)

	l.Wait(context.Background())
	l.Wait(context.Background())
	l.Wait(context.Background())

	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("got %d sleeps %v, want %d", len(sleeps), sleeps, len(want))
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestRateLimiterIdleResetsSpacing(t *testing.T) {
	// WHAT: after the interval has already elapsed, the next call proceeds
	// without waiting.
	clock := newFakeClock()
	slept := false
	l := NewRateLimiter(1,
		WithLimiterClock(clock.Now),
		WithLimiterSleep(func(ctx context.Context, d time.Duration) error {
			slept = true
			return nil
		}),
	)

	l.Wait(context.Background())
	clock.Advance(2 * time.Second)
	l.Wait(context.Background())
	if slept {
		t.Error("call after idle period should not sleep")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter returned %v", err)
	}
}

func TestRateLimiterContextCancelled(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(1, WithLimiterClock(clock.Now))

	l.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestRateLimiterRealSleepSpacing(t *testing.T) {
	// WHAT: with the real clock, two Waits through a 50-calls/sec limiter are
	// at least 20ms apart.
	l := NewRateLimiter(50)

	start := time.Now()
	l.Wait(context.Background())
	l.Wait(context.Background())
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("second call started after %v, want >= 20ms", elapsed)
	}
}
