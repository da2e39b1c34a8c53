package notify

import (
	"math"
	"time"
)

// Backoff computes the wait before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// ConstantBackoff waits the same interval before every retry.
type ConstantBackoff struct {
	Interval time.Duration
}

// Delay returns the fixed interval.
func (c ConstantBackoff) Delay(_ int) time.Duration {
	return c.Interval
}

// ExponentialBackoff doubles the wait each retry.
// Delay = min(Initial * 2^(attempt-1), Max); Max <= 0 means uncapped.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	f := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	// Saturate instead of overflowing when uncapped.
	d := time.Duration(math.MaxInt64)
	if f < math.MaxInt64 {
		d = time.Duration(f)
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// NewBackoff returns the strategy named by kind ("constant" or
// "exponential"). Unknown kinds fall back to constant.
func NewBackoff(kind string, delay, maxDelay time.Duration) Backoff {
	if kind == "exponential" {
		return ExponentialBackoff{Initial: delay, Max: maxDelay}
	}
	return ConstantBackoff{Interval: delay}
}
