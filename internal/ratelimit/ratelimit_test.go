package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catastropr/gridsearch/internal/core/model"
)

// fakeClock drives the limiter without real time. Sleeping advances it.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel bool
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	if c.cancel {
		return context.Canceled
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newFakeLimiter(t *testing.T, callsPerMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l, err := NewWithClock(callsPerMinute, clock.Now, clock.Sleep)
	if err != nil {
		t.Fatalf("NewWithClock: %v", err)
	}
	return l, clock
}

func TestNew_RejectsNonPositiveRate(t *testing.T) {
	for _, n := range []int{0, -5} {
		if _, err := New(n); !errors.Is(err, model.ErrInvalidArgument) {
			t.Fatalf("New(%d): want ErrInvalidArgument, got %v", n, err)
		}
	}
}

func TestWait_BurstPassesWithoutBlocking(t *testing.T) {
	l, clock := newFakeLimiter(t, 30)

	for i := 0; i < 30; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Fatalf("first 30 calls in a minute must not block, slept %v", clock.slept)
	}
}

func TestWait_ExcessCallBlocksForWindow(t *testing.T) {
	l, clock := newFakeLimiter(t, 30)

	for i := 0; i < 30; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("31st call: %v", err)
	}

	if len(clock.slept) != 1 {
		t.Fatalf("31st call must block once, slept %v", clock.slept)
	}
	// 30/min refills one token every 2 seconds.
	if d := clock.slept[0]; d < time.Second || d > 3*time.Second {
		t.Fatalf("31st call slept %v, want ~2s", d)
	}
}

func TestWait_WindowRefillsOverTime(t *testing.T) {
	l, clock := newFakeLimiter(t, 30)

	for i := 0; i < 30; i++ {
		_ = l.Wait(context.Background())
	}

	// A minute later the full budget is back.
	clock.now = clock.now.Add(time.Minute)
	for i := 0; i < 30; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("refilled call %d: %v", i+1, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Fatalf("refilled window must not block, slept %v", clock.slept)
	}
}

func TestWait_CancelledContextReturnsError(t *testing.T) {
	l, clock := newFakeLimiter(t, 1)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	clock.cancel = true
	if err := l.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestWait_ConcurrentUseIsSafe(t *testing.T) {
	l, err := New(6000) // high budget so nothing blocks
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() { done <- l.Wait(context.Background()) }()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent wait: %v", err)
		}
	}
}
