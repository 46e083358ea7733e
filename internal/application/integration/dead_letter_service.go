package integration

import (
	"context"
	"errors"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageProcessor runs a message through transform and delivery
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg *integration.IntegrationMessage) (*integration.IntegrationMessage, error)
}

// ReprocessOutcome is the result of reprocessing one dead letter entry
type ReprocessOutcome struct {
	Entry   *integration.DeadLetterEntry
	Message *integration.IntegrationMessage
}

// BulkReprocessError reports a failed item of a bulk reprocess
type BulkReprocessError struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// BulkReprocessResult summarizes a bulk reprocess
type BulkReprocessResult struct {
	Total      int                  `json:"total"`
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Errors     []BulkReprocessError `json:"errors"`
}

// DeadLetterService manages terminally failed messages
type DeadLetterService struct {
	entries    integration.DeadLetterRepository
	messages   integration.MessageRepository
	connectors integration.ConnectorRepository
	processor  MessageProcessor
	settings   Settings
	clock      Clock
	logger     *zap.Logger
	metrics    Metrics
}

// NewDeadLetterService creates a dead letter service
func NewDeadLetterService(
	entries integration.DeadLetterRepository,
	messages integration.MessageRepository,
	connectors integration.ConnectorRepository,
	settings Settings,
	clock Clock,
	logger *zap.Logger,
	metrics Metrics,
) *DeadLetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &DeadLetterService{
		entries:    entries,
		messages:   messages,
		connectors: connectors,
		settings:   settings,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// AttachProcessor sets the processor used to reprocess entries
func (s *DeadLetterService) AttachProcessor(p MessageProcessor) {
	s.processor = p
}

// MoveToDeadLetter records msg as terminally failed. A message already in
// the dead letter queue keeps its existing entry.
func (s *DeadLetterService) MoveToDeadLetter(
	ctx context.Context,
	msg *integration.IntegrationMessage,
	reason integration.DeadLetterReason,
	errMsg string,
) (*integration.DeadLetterEntry, error) {
	if msg.Status == integration.MessageStatusDeadLetter {
		existing, err := s.entries.FindOpenByMessageID(ctx, msg.ID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, integration.ErrDeadLetterNotFound) {
			return nil, err
		}
	}

	now := s.clock.now()
	entry := integration.NewDeadLetterEntry(msg, reason, errMsg, now)
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}

	msg.MarkDeadLetter(reason, errMsg, now)
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	_, err := s.connectors.Mutate(ctx, msg.TargetConnector, func(c *integration.Connector) error {
		c.RecordDeadLetter(now)
		return nil
	})
	if err != nil && !errors.Is(err, integration.ErrConnectorNotFound) {
		return nil, err
	}

	s.logger.Warn("Message moved to dead letter queue",
		zap.String("message_id", msg.MessageID),
		zap.String("connector", msg.TargetConnector),
		zap.String("reason", string(reason)),
		zap.String("error", errMsg),
	)
	s.metrics.DeadLettered(ctx, reason)
	return entry, nil
}

// ReprocessDeadLetter stamps the entry and resubmits its message from a
// fresh state. The entry itself is kept.
func (s *DeadLetterService) ReprocessDeadLetter(ctx context.Context, id uuid.UUID, actor string) (*ReprocessOutcome, error) {
	if s.processor == nil {
		return nil, shared.ErrInvalidState.WithMessage("Dead letter reprocessing is not available")
	}
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsReprocessed() {
		return nil, integration.ErrDeadLetterAlreadyReprocessed
	}
	msg, err := s.messages.FindByID(ctx, entry.MessageID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	if err := msg.ResetForReprocess(now); err != nil {
		return nil, err
	}
	// The claim is the only step that decides between concurrent callers.
	if err := s.entries.ClaimReprocess(ctx, entry.ID, actor, now); err != nil {
		return nil, err
	}
	if err := entry.MarkReprocessed(actor, now); err != nil {
		return nil, err
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Reprocessing dead letter",
		zap.String("dead_letter_id", entry.ID.String()),
		zap.String("message_id", msg.MessageID),
		zap.String("actor", actor),
	)

	processed, err := s.processor.ProcessMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &ReprocessOutcome{Entry: entry, Message: processed}, nil
}

// BulkReprocessDeadLetters reprocesses unreprocessed entries matching filter
// up to limit. Individual failures are collected without stopping the batch.
func (s *DeadLetterService) BulkReprocessDeadLetters(
	ctx context.Context,
	filter integration.DeadLetterFilter,
	limit int,
	actor string,
) (*BulkReprocessResult, error) {
	if limit <= 0 {
		limit = s.settings.BulkReprocessLimit
	}
	if s.settings.MaxBulkReprocessLimit > 0 && limit > s.settings.MaxBulkReprocessLimit {
		limit = s.settings.MaxBulkReprocessLimit
	}
	notReprocessed := false
	filter.Reprocessed = &notReprocessed
	filter.Page = 1
	filter.PageSize = limit
	filter.OrderBy = "created_at"
	filter.OrderDir = "asc"

	entries, _, err := s.entries.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &BulkReprocessResult{Total: len(entries), Errors: []BulkReprocessError{}}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.ReprocessDeadLetter(ctx, entry.ID, actor); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkReprocessError{ID: entry.ID, Error: err.Error()})
			continue
		}
		result.Successful++
	}

	s.logger.Info("Bulk dead letter reprocess finished",
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.String("actor", actor),
	)
	return result, nil
}

// GetDeadLetterStats aggregates the queue by connector and reason
func (s *DeadLetterService) GetDeadLetterStats(ctx context.Context) (*integration.DeadLetterStats, error) {
	return s.entries.Stats(ctx)
}

// GetDeadLetter returns one entry
func (s *DeadLetterService) GetDeadLetter(ctx context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	return s.entries.FindByID(ctx, id)
}

// OpenEntryFor returns the unreprocessed entry of a message
func (s *DeadLetterService) OpenEntryFor(ctx context.Context, messageID uuid.UUID) (*integration.DeadLetterEntry, error) {
	return s.entries.FindOpenByMessageID(ctx, messageID)
}

// ListDeadLetters lists entries matching filter
func (s *DeadLetterService) ListDeadLetters(ctx context.Context, filter integration.DeadLetterFilter) ([]integration.DeadLetterEntry, int64, error) {
	filter.Normalize()
	return s.entries.FindAll(ctx, filter)
}
