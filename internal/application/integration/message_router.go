package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/erp/integration-hub/internal/application/integration"

// DuplicateNotice is attached to messages returned for a repeated submission
const DuplicateNotice = "Duplicate message"

// MessageRouter drives a message through idempotency, connector lookup,
// rate limiting, the circuit breaker, transformation and delivery.
// Expected failures end in a message status, never in an error.
type MessageRouter struct {
	messages   integration.MessageRepository
	connectors integration.ConnectorRepository
	checker    *IdempotencyChecker
	limiter    *RateLimiter
	breaker    *CircuitBreaker
	retry      *RetryScheduler
	dlq        *DeadLetterService
	engine     *TransformationEngine
	gateway    integration.DeliveryGateway
	settings   Settings
	clock      Clock
	logger     *zap.Logger
	metrics    Metrics
	tracer     trace.Tracer
}

// RouterDeps are the collaborators of the message router
type RouterDeps struct {
	Messages   integration.MessageRepository
	Connectors integration.ConnectorRepository
	Checker    *IdempotencyChecker
	Limiter    *RateLimiter
	Breaker    *CircuitBreaker
	Retry      *RetryScheduler
	DeadLetter *DeadLetterService
	Engine     *TransformationEngine
	Gateway    integration.DeliveryGateway
}

// NewMessageRouter creates a message router
func NewMessageRouter(deps RouterDeps, settings Settings, clock Clock, logger *zap.Logger, metrics Metrics) *MessageRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &MessageRouter{
		messages:   deps.Messages,
		connectors: deps.Connectors,
		checker:    deps.Checker,
		limiter:    deps.Limiter,
		breaker:    deps.Breaker,
		retry:      deps.Retry,
		dlq:        deps.DeadLetter,
		engine:     deps.Engine,
		gateway:    deps.Gateway,
		settings:   settings,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
	}
}

// RouteMessage admits a new message and runs its first processing attempt.
// A repeated submission returns the earlier message flagged as duplicate.
// An unknown or inactive target connector leaves a FAILED record and is
// returned together with the connector error.
func (r *MessageRouter) RouteMessage(ctx context.Context, req RouteMessageRequest) (*integration.IntegrationMessage, error) {
	ctx, span := r.tracer.Start(ctx, "hub.RouteMessage", trace.WithAttributes(
		attribute.String("hub.message_id", req.MessageID),
		attribute.String("hub.target_connector", req.TargetConnector),
		attribute.String("hub.message_type", req.Type),
	))
	defer span.End()

	maxRetries := r.settings.Retry.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	msg, err := integration.NewIntegrationMessage(integration.NewMessageParams{
		MessageID:       req.MessageID,
		SourceConnector: req.SourceConnector,
		TargetConnector: req.TargetConnector,
		Direction:       integration.Direction(req.Direction),
		Type:            req.Type,
		SourcePayload:   req.SourcePayload,
		IdempotencyKey:  req.IdempotencyKey,
		MaxRetries:      maxRetries,
	}, r.clock.now())
	if err != nil {
		return nil, err
	}

	admitted, err := r.admit(ctx, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return admitted, err
	}
	if admitted != msg {
		return admitted, nil
	}
	return r.ProcessMessage(ctx, msg)
}

// admit stores msg unless it duplicates an earlier submission, holding the
// idempotency key lock from the check until the insert is visible. It
// returns msg when it was admitted, the earlier message for a duplicate, or
// a FAILED record with the connector error.
func (r *MessageRouter) admit(ctx context.Context, msg *integration.IntegrationMessage) (*integration.IntegrationMessage, error) {
	unlock := r.checker.Lock(msg.IdempotencyKey)
	defer unlock()

	check, err := r.checker.CheckIdempotency(ctx, msg.IdempotencyKey, msg.SourcePayload)
	if err != nil {
		return nil, fmt.Errorf("check idempotency: %w", err)
	}
	if check.IsDuplicate {
		existing := check.Existing
		existing.IsDuplicate = true
		existing.Notice = DuplicateNotice
		r.logger.Info("Duplicate message short-circuited",
			zap.String("message_id", existing.MessageID),
			zap.String("idempotency_key", existing.IdempotencyKey),
			zap.String("status", string(existing.Status)),
		)
		r.metrics.DuplicateDetected(ctx)
		return existing, nil
	}

	connector, err := r.connectors.FindByCode(ctx, msg.TargetConnector)
	if err == nil && !connector.IsActive {
		err = integration.ErrConnectorInactive
	}
	if err != nil {
		if !errors.Is(err, integration.ErrConnectorNotFound) && !errors.Is(err, integration.ErrConnectorInactive) {
			return nil, fmt.Errorf("load connector: %w", err)
		}
		msg.MarkFailed(err.Error(), r.clock.now())
		if createErr := r.messages.Create(ctx, msg); createErr != nil {
			return nil, fmt.Errorf("persist failed message: %w", createErr)
		}
		r.metrics.MessageRouted(ctx, msg.Status)
		return msg, err
	}

	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	r.checker.Remember(ctx, msg)
	if _, err := r.connectors.Mutate(ctx, msg.TargetConnector, func(c *integration.Connector) error {
		c.RecordMessageReceived(r.clock.now())
		return nil
	}); err != nil {
		return nil, fmt.Errorf("count received message: %w", err)
	}
	return msg, nil
}

// ProcessMessage runs one processing attempt and persists its outcome
func (r *MessageRouter) ProcessMessage(ctx context.Context, msg *integration.IntegrationMessage) (*integration.IntegrationMessage, error) {
	ctx, span := r.tracer.Start(ctx, "hub.ProcessMessage", trace.WithAttributes(
		attribute.String("hub.message_id", msg.MessageID),
		attribute.String("hub.target_connector", msg.TargetConnector),
		attribute.Int("hub.retry_count", msg.RetryCount),
	))
	defer span.End()

	if err := msg.BeginAttempt(r.clock.now()); err != nil {
		return msg, err
	}
	if err := r.messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist attempt: %w", err)
	}

	if err := r.attempt(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("Message processing failed",
			zap.String("message_id", msg.MessageID),
			zap.String("connector", msg.TargetConnector),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("hub.status", string(msg.Status)))
	r.metrics.MessageRouted(ctx, msg.Status)
	return msg, nil
}

func (r *MessageRouter) attempt(ctx context.Context, msg *integration.IntegrationMessage) error {
	connector, err := r.connectors.FindByCode(ctx, msg.TargetConnector)
	if errors.Is(err, integration.ErrConnectorNotFound) {
		_, err = r.dlq.MoveToDeadLetter(ctx, msg, integration.ReasonConnectorUnavailable, err.Error())
		return err
	}
	if err != nil {
		return fmt.Errorf("load connector: %w", err)
	}
	if !connector.IsActive {
		return r.scheduleRetry(ctx, msg, integration.ErrConnectorInactive.Message)
	}

	decision, err := r.limiter.CheckRateLimit(ctx, connector.Code)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}
	if !decision.Allowed {
		return r.scheduleRetry(ctx, msg, "rate limit exceeded")
	}

	state, err := r.breaker.GetCircuitState(ctx, connector.Code)
	if err != nil {
		return fmt.Errorf("check circuit: %w", err)
	}
	if state == integration.CircuitOpen {
		return r.deferForCircuit(ctx, msg)
	}

	result, err := r.engine.TransformMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("transform message: %w", err)
	}
	msg.ApplyTransform(result, r.clock.now())
	if !result.Success() {
		_, err = r.dlq.MoveToDeadLetter(ctx, msg, integration.ReasonTransformationFailed, strings.Join(result.Errors, "; "))
		return err
	}

	return r.deliver(ctx, connector, msg)
}

func (r *MessageRouter) deliver(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) error {
	timeout := connector.Timeout
	if timeout <= 0 {
		timeout = r.settings.DeliveryTimeout
	}
	deliveryCtx, cancel := context.WithTimeout(ctx, timeout)
	start := r.clock.now()
	receipt, deliveryErr := r.gateway.Deliver(deliveryCtx, connector, msg)
	cancel()
	elapsed := r.clock.now().Sub(start)
	r.metrics.DeliveryFinished(ctx, connector.Code, deliveryErr == nil, elapsed)

	if deliveryErr == nil {
		msg.Complete(r.clock.now())
		if err := r.messages.Save(ctx, msg); err != nil {
			return fmt.Errorf("persist completed message: %w", err)
		}
		if _, err := r.breaker.RecordDelivered(ctx, connector.Code); err != nil {
			return fmt.Errorf("record delivery: %w", err)
		}
		fields := []zap.Field{
			zap.String("message_id", msg.MessageID),
			zap.String("connector", connector.Code),
			zap.Duration("elapsed", elapsed),
		}
		if receipt != nil && receipt.Reference != "" {
			fields = append(fields, zap.String("reference", receipt.Reference))
		}
		r.logger.Info("Message delivered", fields...)
		return nil
	}

	if _, err := r.breaker.RecordFailure(ctx, connector.Code); err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	if !integration.IsRetryableDeliveryError(deliveryErr) {
		_, err := r.dlq.MoveToDeadLetter(ctx, msg, integration.ReasonDeliveryRejected, deliveryErr.Error())
		return err
	}
	return r.scheduleRetry(ctx, msg, deliveryErr.Error())
}

// deferForCircuit counts the rejection against the connector and parks the
// message until the cooldown ends without consuming one of its retries.
func (r *MessageRouter) deferForCircuit(ctx context.Context, msg *integration.IntegrationMessage) error {
	connector, err := r.breaker.RecordFailure(ctx, msg.TargetConnector)
	if err != nil {
		return fmt.Errorf("record circuit rejection: %w", err)
	}
	now := r.clock.now()
	if r.settings.CircuitMaxWait > 0 && now.Sub(msg.ReceivedAt) > r.settings.CircuitMaxWait {
		_, err := r.dlq.MoveToDeadLetter(ctx, msg, integration.ReasonCircuitOpen,
			"circuit open for longer than "+r.settings.CircuitMaxWait.String())
		return err
	}

	next := connector.CircuitRetryAt(now, r.breaker.Cooldown())
	msg.Defer(next, "circuit open", now)
	if err := r.messages.Save(ctx, msg); err != nil {
		return fmt.Errorf("persist deferred message: %w", err)
	}
	r.logger.Info("Message deferred by open circuit",
		zap.String("message_id", msg.MessageID),
		zap.String("connector", msg.TargetConnector),
		zap.Time("next_retry_at", next),
	)
	return nil
}

func (r *MessageRouter) scheduleRetry(ctx context.Context, msg *integration.IntegrationMessage, cause string) error {
	_, err := r.retry.ScheduleRetry(ctx, msg, cause)
	return err
}

// ReprocessMessage starts a fresh processing pass for an existing message.
// Dead-lettered messages are reprocessed through their dead letter entry.
func (r *MessageRouter) ReprocessMessage(ctx context.Context, id uuid.UUID, actor string) (*integration.IntegrationMessage, error) {
	msg, err := r.messages.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if msg.Status == integration.MessageStatusDeadLetter {
		entry, err := r.dlq.OpenEntryFor(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		outcome, err := r.dlq.ReprocessDeadLetter(ctx, entry.ID, actor)
		if err != nil {
			return nil, err
		}
		return outcome.Message, nil
	}

	if err := msg.ResetForReprocess(r.clock.now()); err != nil {
		return nil, err
	}
	if err := r.messages.Save(ctx, msg); err != nil {
		return nil, err
	}
	r.logger.Info("Reprocessing message",
		zap.String("message_id", msg.MessageID),
		zap.String("actor", actor),
	)
	return r.ProcessMessage(ctx, msg)
}

// GetMessage returns one message
func (r *MessageRouter) GetMessage(ctx context.Context, id uuid.UUID) (*integration.IntegrationMessage, error) {
	return r.messages.FindByID(ctx, id)
}

// ListMessages lists messages matching filter
func (r *MessageRouter) ListMessages(ctx context.Context, filter integration.MessageFilter) ([]integration.IntegrationMessage, int64, error) {
	filter.Normalize()
	return r.messages.FindAll(ctx, filter)
}

// ClaimDue claims due retries so a caller can process them concurrently
func (r *MessageRouter) ClaimDue(ctx context.Context, limit int) ([]integration.IntegrationMessage, error) {
	return r.messages.ClaimDue(ctx, r.clock.now(), limit)
}

// RequeueStale returns messages stuck in PROCESSING for longer than staleAfter
func (r *MessageRouter) RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := r.clock.now()
	n, err := r.messages.RequeueStale(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Warn("Requeued stale messages", zap.Int64("count", n))
	}
	return n, nil
}
