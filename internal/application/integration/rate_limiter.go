package integration

import (
	"context"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// RateLimiter applies each connector's fixed-window limit
type RateLimiter struct {
	connectors integration.ConnectorRepository
	clock      Clock
	metrics    Metrics
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter(connectors integration.ConnectorRepository, clock Clock, metrics Metrics) *RateLimiter {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &RateLimiter{connectors: connectors, clock: clock, metrics: metrics}
}

// CheckRateLimit consumes one slot of the connector's current window
func (r *RateLimiter) CheckRateLimit(ctx context.Context, code string) (integration.RateLimitDecision, error) {
	var decision integration.RateLimitDecision
	_, err := r.connectors.Mutate(ctx, code, func(c *integration.Connector) error {
		decision = c.ConsumeRateLimit(r.clock.now())
		return nil
	})
	if err != nil {
		return integration.RateLimitDecision{}, err
	}
	if !decision.Allowed {
		r.metrics.RateLimited(ctx, code)
	}
	return decision, nil
}
