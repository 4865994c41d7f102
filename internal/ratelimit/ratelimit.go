// Package ratelimit caps outbound registry calls. One limiter is built per
// search and shared by every cell fetch, so the budget is global rather than
// per cell.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
)

// Limiter admits at most callsPerMinute invocations within any rolling
// 60-second window. Calls over budget block until the window admits them.
// Safe for concurrent use.
type Limiter struct {
	lim   *rate.Limiter
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(callsPerMinute int) (*Limiter, error) {
	return NewWithClock(callsPerMinute, time.Now, ctxSleep)
}

// NewWithClock injects the clock and sleep function so tests can drive the
// window without real delays.
func NewWithClock(callsPerMinute int, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) (*Limiter, error) {
	if callsPerMinute < 1 {
		return nil, model.InvalidArgumentf("calls per minute must be >= 1, got %d", callsPerMinute)
	}
	return &Limiter{
		lim:   rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
		now:   now,
		sleep: sleep,
	}, nil
}

// Wait blocks until the window admits one call, or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return model.InvalidArgumentf("rate limiter cannot satisfy request")
	}
	d := r.DelayFrom(l.now())
	if d <= 0 {
		return nil
	}

	observability.ObserveRateLimitWait(d.Seconds())
	if err := l.sleep(ctx, d); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
