// Package retry runs a fallible operation a bounded number of times with a
// fixed delay between attempts and falls back to a substitute value once the
// attempts are exhausted.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Retries is the number of additional attempts after the first one.
	Retries int
	Delay   time.Duration
	// NewTimer overrides the timer used between attempts. Nil uses a real timer.
	NewTimer func() backoff.Timer
}

// Default is three retries five seconds apart.
var Default = Policy{Retries: 3, Delay: 5 * time.Second}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(max(p.Retries, 0)))
	return backoff.WithContext(b, ctx)
}

func (p Policy) timer() backoff.Timer {
	if p.NewTimer == nil {
		return nil
	}
	return p.NewTimer()
}

// Do runs op until it succeeds or the policy is exhausted and returns the last error.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("retries", p.Retries).
			Dur("delay", next).
			Msg("Retrying after failure")
	}

	return backoff.RetryNotifyWithTimerAndData(operation, p.backOff(ctx), notify, p.timer())
}

// WithFallback is Do that never fails: once the attempts are exhausted it logs
// the last error and returns fallback().
func WithFallback[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error), fallback func() T) T {
	v, err := Do(ctx, p, name, op)
	if err != nil {
		log.Error().Err(err).Str("operation", name).Msg("All attempts failed, using fallback")
		return fallback()
	}
	return v
}

// Sleep waits for d using the policy's timer, returning early with ctx.Err()
// when the context is cancelled.
func (p Policy) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := p.timer()
	if t == nil {
		t = &realTimer{}
	}
	t.Start(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Start(d time.Duration) { t.timer = time.NewTimer(d) }

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
