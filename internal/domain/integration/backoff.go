package integration

import (
	"math"
	"time"
)

// MaxJitterRatio is the upper bound of the random delay added to a backoff
const MaxJitterRatio = 0.2

// RetryPolicy configures exponential backoff
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultRetryPolicy returns a one second base, five minute cap policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Minute,
		Multiplier: 2,
		MaxRetries: 5,
	}
}

// Validate validates the retry policy
func (p RetryPolicy) Validate() error {
	if p.BaseDelay <= 0 {
		return ErrInvalidRetryPolicy.WithMessage("Base delay must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		return ErrInvalidRetryPolicy.WithMessage("Max delay cannot be below base delay")
	}
	if p.Multiplier < 1 {
		return ErrInvalidRetryPolicy.WithMessage("Multiplier must be at least 1")
	}
	if p.MaxRetries < 0 {
		return ErrInvalidRetryPolicy.WithMessage("Max retries cannot be negative")
	}
	return nil
}

// BaseDelayFor returns min(base * multiplier^(attempt-1), max) before jitter.
// Attempts below 1 are treated as the first attempt.
func (p RetryPolicy) BaseDelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// CalculateBackoffDelay returns the jittered delay for attempt. jitter is a
// sample in [0, 1) scaled to at most MaxJitterRatio of the base delay, so the
// result never exceeds MaxDelay * 1.2.
func CalculateBackoffDelay(attempt int, policy RetryPolicy, jitter float64) time.Duration {
	base := policy.BaseDelayFor(attempt)
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return base + time.Duration(float64(base)*MaxJitterRatio*jitter)
}
