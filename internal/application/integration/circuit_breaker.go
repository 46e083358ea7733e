package integration

import (
	"context"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
)

// CircuitBreaker drives the per-connector CLOSED/OPEN/HALF_OPEN state machine
type CircuitBreaker struct {
	connectors integration.ConnectorRepository
	cooldown   time.Duration
	clock      Clock
	logger     *zap.Logger
	metrics    Metrics
}

// NewCircuitBreaker creates a circuit breaker
func NewCircuitBreaker(
	connectors integration.ConnectorRepository,
	cooldown time.Duration,
	clock Clock,
	logger *zap.Logger,
	metrics Metrics,
) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CircuitBreaker{
		connectors: connectors,
		cooldown:   cooldown,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Cooldown returns how long an OPEN circuit rejects deliveries
func (b *CircuitBreaker) Cooldown() time.Duration {
	return b.cooldown
}

// RecordFailure counts a failed attempt against the connector
func (b *CircuitBreaker) RecordFailure(ctx context.Context, code string) (*integration.Connector, error) {
	return b.mutate(ctx, code, func(c *integration.Connector, now time.Time) *integration.CircuitTransition {
		return c.RecordFailure(now)
	})
}

// RecordSuccess counts a successful attempt against the connector
func (b *CircuitBreaker) RecordSuccess(ctx context.Context, code string) (*integration.Connector, error) {
	return b.mutate(ctx, code, func(c *integration.Connector, now time.Time) *integration.CircuitTransition {
		return c.RecordSuccess(now)
	})
}

// RecordDelivered counts a successful attempt and a completed message in one update
func (b *CircuitBreaker) RecordDelivered(ctx context.Context, code string) (*integration.Connector, error) {
	return b.mutate(ctx, code, func(c *integration.Connector, now time.Time) *integration.CircuitTransition {
		c.SuccessfulMessages++
		return c.RecordSuccess(now)
	})
}

// GetCircuitState returns the effective state, persisting the OPEN to
// HALF_OPEN move once the cooldown has elapsed.
func (b *CircuitBreaker) GetCircuitState(ctx context.Context, code string) (integration.CircuitState, error) {
	c, err := b.connectors.FindByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if c.CircuitState != integration.CircuitOpen {
		return c.CircuitState, nil
	}

	var state integration.CircuitState
	_, err = b.mutate(ctx, code, func(c *integration.Connector, now time.Time) *integration.CircuitTransition {
		s, transition := c.ResolveCircuit(now, b.cooldown)
		state = s
		return transition
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// Reset forces the connector's circuit CLOSED
func (b *CircuitBreaker) Reset(ctx context.Context, code string) (*integration.Connector, error) {
	return b.mutate(ctx, code, func(c *integration.Connector, now time.Time) *integration.CircuitTransition {
		return c.ResetCircuit(now)
	})
}

func (b *CircuitBreaker) mutate(
	ctx context.Context,
	code string,
	fn func(c *integration.Connector, now time.Time) *integration.CircuitTransition,
) (*integration.Connector, error) {
	var transition *integration.CircuitTransition
	updated, err := b.connectors.Mutate(ctx, code, func(c *integration.Connector) error {
		transition = fn(c, b.clock.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transition != nil {
		b.logger.Info("Circuit state changed",
			zap.String("connector", code),
			zap.String("from", string(transition.From)),
			zap.String("to", string(transition.To)),
			zap.Int("failure_count", updated.FailureCount),
		)
		b.metrics.CircuitTransitioned(ctx, code, transition.To)
	}
	return updated, nil
}
