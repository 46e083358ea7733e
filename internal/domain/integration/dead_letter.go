package integration

import (
	"context"
	"time"

	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// DeadLetterReason explains why a message left the retry path
type DeadLetterReason string

const (
	ReasonMaxRetriesExceeded   DeadLetterReason = "MAX_RETRIES_EXCEEDED"
	ReasonTransformationFailed DeadLetterReason = "TRANSFORMATION_FAILED"
	ReasonCircuitOpen          DeadLetterReason = "CIRCUIT_OPEN"
	ReasonValidationError      DeadLetterReason = "VALIDATION_ERROR"
	ReasonDeliveryRejected     DeadLetterReason = "DELIVERY_REJECTED"
	ReasonConnectorUnavailable DeadLetterReason = "CONNECTOR_UNAVAILABLE"
)

// IsValid checks if the reason is known
func (r DeadLetterReason) IsValid() bool {
	switch r {
	case ReasonMaxRetriesExceeded, ReasonTransformationFailed, ReasonCircuitOpen,
		ReasonValidationError, ReasonDeliveryRejected, ReasonConnectorUnavailable:
		return true
	}
	return false
}

// IsRetryable reports whether reprocessing can reasonably succeed without
// changing the payload or the connector configuration.
func (r DeadLetterReason) IsRetryable() bool {
	switch r {
	case ReasonMaxRetriesExceeded, ReasonCircuitOpen, ReasonConnectorUnavailable:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// DeadLetterEntry Entity
// ---------------------------------------------------------------------------

// DeadLetterEntry records a terminally failed message
type DeadLetterEntry struct {
	shared.BaseEntity

	// MessageID references the internal id of the failed message
	MessageID uuid.UUID
	// OriginalMessageID is the caller supplied message id
	OriginalMessageID string
	Connector         string
	MessageType       string
	Reason            DeadLetterReason
	ErrorMessage      string
	// Payload is a snapshot of the message's source payload
	Payload       Payload
	Retryable     bool
	RetryCount    int
	ReprocessedAt *time.Time
	ReprocessedBy string
}

// NewDeadLetterEntry snapshots msg into a dead letter entry
func NewDeadLetterEntry(msg *IntegrationMessage, reason DeadLetterReason, errMsg string, now time.Time) *DeadLetterEntry {
	return &DeadLetterEntry{
		BaseEntity:        shared.NewBaseEntityAt(now),
		MessageID:         msg.ID,
		OriginalMessageID: msg.MessageID,
		Connector:         msg.TargetConnector,
		MessageType:       msg.Type,
		Reason:            reason,
		ErrorMessage:      errMsg,
		Payload:           msg.SourcePayload.Clone(),
		Retryable:         reason.IsRetryable(),
		RetryCount:        msg.RetryCount,
	}
}

// IsReprocessed reports whether the entry was already acted upon
func (e *DeadLetterEntry) IsReprocessed() bool {
	return e.ReprocessedAt != nil
}

// MarkReprocessed stamps the entry; an entry is reprocessed at most once
func (e *DeadLetterEntry) MarkReprocessed(actor string, now time.Time) error {
	if e.IsReprocessed() {
		return ErrDeadLetterAlreadyReprocessed
	}
	e.ReprocessedAt = &now
	e.ReprocessedBy = actor
	e.Touch(now)
	return nil
}

// DeadLetterFilter filters dead letter listings and bulk reprocessing
type DeadLetterFilter struct {
	shared.Filter
	IDs         []uuid.UUID
	Connector   string
	Reason      DeadLetterReason
	Retryable   *bool
	Reprocessed *bool
}

// DeadLetterStats aggregates the dead letter queue
type DeadLetterStats struct {
	Total       int64
	Retryable   int64
	Reprocessed int64
	Pending     int64
	ByConnector map[string]int64
	ByReason    map[DeadLetterReason]int64
}

// NewDeadLetterStats returns empty statistics
func NewDeadLetterStats() *DeadLetterStats {
	return &DeadLetterStats{
		ByConnector: map[string]int64{},
		ByReason:    map[DeadLetterReason]int64{},
	}
}

// Add folds one entry into the statistics
func (s *DeadLetterStats) Add(e *DeadLetterEntry) {
	s.Total++
	if e.Retryable {
		s.Retryable++
	}
	if e.IsReprocessed() {
		s.Reprocessed++
	} else {
		s.Pending++
	}
	s.ByConnector[e.Connector]++
	s.ByReason[e.Reason]++
}

// DeadLetterRepository persists dead letter entries
type DeadLetterRepository interface {
	Create(ctx context.Context, e *DeadLetterEntry) error
	Save(ctx context.Context, e *DeadLetterEntry) error
	// ClaimReprocess stamps an unreprocessed entry in one conditional update.
	// It returns ErrDeadLetterAlreadyReprocessed when the entry was already claimed.
	ClaimReprocess(ctx context.Context, id uuid.UUID, actor string, at time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*DeadLetterEntry, error)
	// FindOpenByMessageID returns the unreprocessed entry of a message, or ErrDeadLetterNotFound
	FindOpenByMessageID(ctx context.Context, messageID uuid.UUID) (*DeadLetterEntry, error)
	FindAll(ctx context.Context, filter DeadLetterFilter) ([]DeadLetterEntry, int64, error)
	Stats(ctx context.Context) (*DeadLetterStats, error)
}
