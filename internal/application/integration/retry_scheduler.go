package integration

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
)

// RetryDecision is the outcome of ScheduleRetry
type RetryDecision struct {
	Scheduled   bool
	NextRetryAt *time.Time
	Delay       time.Duration
	// DeadLetter is set when retries were exhausted
	DeadLetter *integration.DeadLetterEntry
}

// RetryScheduler computes backoff and decides between retry and dead letter.
// It never sleeps; due messages are picked up by the retry poller.
type RetryScheduler struct {
	policy   integration.RetryPolicy
	messages integration.MessageRepository
	dlq      *DeadLetterService
	jitter   func() float64
	clock    Clock
	logger   *zap.Logger
}

// NewRetryScheduler creates a retry scheduler
func NewRetryScheduler(
	policy integration.RetryPolicy,
	messages integration.MessageRepository,
	dlq *DeadLetterService,
	clock Clock,
	logger *zap.Logger,
) *RetryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryScheduler{
		policy:   policy,
		messages: messages,
		dlq:      dlq,
		jitter:   rand.Float64,
		clock:    clock,
		logger:   logger,
	}
}

// SetJitterSource replaces the random source used for jitter
func (s *RetryScheduler) SetJitterSource(fn func() float64) {
	s.jitter = fn
}

// Policy returns the retry policy
func (s *RetryScheduler) Policy() integration.RetryPolicy {
	return s.policy
}

// CalculateBackoffDelay returns the jittered delay for attempt
func (s *RetryScheduler) CalculateBackoffDelay(attempt int) time.Duration {
	return integration.CalculateBackoffDelay(attempt, s.policy, s.jitter())
}

// ScheduleRetry consumes a retry and sets the next attempt time, or moves
// the message to the dead letter queue once its retries are exhausted.
func (s *RetryScheduler) ScheduleRetry(ctx context.Context, msg *integration.IntegrationMessage, cause string) (*RetryDecision, error) {
	if !msg.CanRetry() {
		entry, err := s.dlq.MoveToDeadLetter(ctx, msg, integration.ReasonMaxRetriesExceeded, cause)
		if err != nil {
			return nil, err
		}
		return &RetryDecision{DeadLetter: entry}, nil
	}

	now := s.clock.now()
	delay := s.CalculateBackoffDelay(msg.RetryCount + 1)
	next := now.Add(delay)
	msg.ScheduleRetry(next, cause, now)
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Message scheduled for retry",
		zap.String("message_id", msg.MessageID),
		zap.String("connector", msg.TargetConnector),
		zap.Int("retry_count", msg.RetryCount),
		zap.Duration("delay", delay),
		zap.String("cause", cause),
	)
	return &RetryDecision{Scheduled: true, NextRetryAt: &next, Delay: delay}, nil
}
