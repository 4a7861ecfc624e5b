// Package backoff computes how long a worker pauses after its queue or
// store fails. Parser failures never reach it; they end the job attempt.
// All strategies are stateless and safe for concurrent use.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the pause before the next claim after consecutive
// failures.
type Strategy interface {
	// Delay returns the pause after the n-th consecutive failure
	// (1-indexed).
	Delay(failures int) time.Duration
}

// Constant pauses for the same interval after every failure.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the pause after each consecutive failure.
// Delay = min(Initial * 2^(n-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(n-1), capped at Max.
func (e *Exponential) Delay(failures int) time.Duration {
	return capped(e.Initial, e.Max, failures)
}

// ExponentialWithJitter picks a random pause in
// [0, min(Initial * 2^(n-1), Max)] so a fleet of workers losing the same
// Redis does not reconnect in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration up to the capped exponential base.
func (e *ExponentialWithJitter) Delay(failures int) time.Duration {
	base := capped(e.Initial, e.Max, failures)
	return time.Duration(rand.Float64() * float64(base)) //nolint:gosec // jitter does not need crypto rand
}

func capped(initial, maxDelay time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(initial) * math.Pow(2, float64(n-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// DefaultStrategy pauses a constant 5s after every failure.
func DefaultStrategy() Strategy {
	return NewConstant(5 * time.Second)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
