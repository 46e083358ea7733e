package integration

import "time"

// RateLimitDecision is the outcome of a fixed-window rate limit check
type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	// Unlimited is set when the connector has no rate limit
	Unlimited bool
	// ResetAt is when the current window ends, nil when unlimited
	ResetAt *time.Time
}

// ConsumeRateLimit admits or rejects one delivery against the fixed window.
// An elapsed window restarts at now with a count of one. Inside the window
// the count is only incremented while below the limit.
func (c *Connector) ConsumeRateLimit(now time.Time) RateLimitDecision {
	if c.RateLimit == nil {
		return RateLimitDecision{Allowed: true, Remaining: -1, Unlimited: true}
	}
	limit := *c.RateLimit
	window := c.rateLimitWindow()

	if c.WindowStart == nil || now.Sub(*c.WindowStart) >= window {
		start := now
		c.WindowStart = &start
		c.CurrentCount = 1
		c.Touch(now)
		resetAt := start.Add(window)
		return RateLimitDecision{Allowed: true, Remaining: max(0, limit-1), ResetAt: &resetAt}
	}

	allowed := c.CurrentCount < limit
	if allowed {
		c.CurrentCount++
		c.Touch(now)
	}
	resetAt := c.WindowStart.Add(window)
	return RateLimitDecision{
		Allowed:   allowed,
		Remaining: max(0, limit-c.CurrentCount),
		ResetAt:   &resetAt,
	}
}

func (c *Connector) rateLimitWindow() time.Duration {
	seconds := c.RateLimitWindowSeconds
	if seconds <= 0 {
		seconds = DefaultRateLimitWindowSeconds
	}
	return time.Duration(seconds) * time.Second
}
