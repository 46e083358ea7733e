package integration

import (
	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
)

// Dependencies are the ports the hub services are built on
type Dependencies struct {
	Connectors      integration.ConnectorRepository
	Messages        integration.MessageRepository
	Transformations integration.TransformationRepository
	DeadLetters     integration.DeadLetterRepository
	// Cache is optional
	Cache   integration.IdempotencyCache
	Gateway integration.DeliveryGateway
	Clock   Clock
	Logger  *zap.Logger
	Metrics Metrics
}

// Hub bundles the wired application services
type Hub struct {
	Checker         *IdempotencyChecker
	RateLimiter     *RateLimiter
	CircuitBreaker  *CircuitBreaker
	RetryScheduler  *RetryScheduler
	DeadLetters     *DeadLetterService
	Engine          *TransformationEngine
	Router          *MessageRouter
	Connectors      *ConnectorService
	Transformations *TransformationService
}

// NewHub wires the application services together
func NewHub(deps Dependencies, settings Settings) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	checker := NewIdempotencyChecker(deps.Messages, deps.Cache, settings.IdempotencyTTL, logger)
	limiter := NewRateLimiter(deps.Connectors, deps.Clock, metrics)
	breaker := NewCircuitBreaker(deps.Connectors, settings.CircuitCooldown, deps.Clock, logger, metrics)
	dlq := NewDeadLetterService(deps.DeadLetters, deps.Messages, deps.Connectors, settings, deps.Clock, logger, metrics)
	retry := NewRetryScheduler(settings.Retry, deps.Messages, dlq, deps.Clock, logger)
	engine := NewTransformationEngine(deps.Transformations)

	router := NewMessageRouter(RouterDeps{
		Messages:   deps.Messages,
		Connectors: deps.Connectors,
		Checker:    checker,
		Limiter:    limiter,
		Breaker:    breaker,
		Retry:      retry,
		DeadLetter: dlq,
		Engine:     engine,
		Gateway:    deps.Gateway,
	}, settings, deps.Clock, logger, metrics)
	dlq.AttachProcessor(router)

	return &Hub{
		Checker:         checker,
		RateLimiter:     limiter,
		CircuitBreaker:  breaker,
		RetryScheduler:  retry,
		DeadLetters:     dlq,
		Engine:          engine,
		Router:          router,
		Connectors:      NewConnectorService(deps.Connectors, breaker, deps.Gateway, settings, deps.Clock, logger),
		Transformations: NewTransformationService(deps.Transformations, deps.Clock, logger),
	}
}
