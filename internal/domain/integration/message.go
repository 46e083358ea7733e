package integration

import (
	"context"
	"strings"
	"time"

	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// MessageStatus is the processing status of an integration message
type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "PENDING"
	MessageStatusProcessing MessageStatus = "PROCESSING"
	MessageStatusRetrying   MessageStatus = "RETRYING"
	MessageStatusCompleted  MessageStatus = "COMPLETED"
	MessageStatusFailed     MessageStatus = "FAILED"
	MessageStatusDeadLetter MessageStatus = "DEAD_LETTER"
)

// IsValid checks if the status is valid
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusPending, MessageStatusProcessing, MessageStatusRetrying,
		MessageStatusCompleted, MessageStatusFailed, MessageStatusDeadLetter:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the processing pass
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusCompleted || s == MessageStatusDeadLetter
}

// ---------------------------------------------------------------------------
// IntegrationMessage Entity
// ---------------------------------------------------------------------------

// IntegrationMessage is one message flowing through the hub
type IntegrationMessage struct {
	shared.BaseEntity

	// MessageID is supplied by the caller and may repeat across submissions
	MessageID       string
	SourceConnector string
	TargetConnector string
	Direction       Direction
	Type            string
	// TargetType is the message type produced by the applied transformation
	TargetType string

	SourcePayload    Payload
	CanonicalPayload Payload
	TargetPayload    Payload
	TransformationID *uuid.UUID
	TransformedAt    *time.Time
	TransformErrors  []string

	Status       MessageStatus
	RetryCount   int
	MaxRetries   int
	NextRetryAt  *time.Time
	LastError    string
	ErrorDetails map[string]any

	IdempotencyKey string
	ProcessedHash  string
	IsDuplicate    bool

	ReceivedAt  time.Time
	ProcessedAt *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time

	// Notice is an informational remark for the caller and is not persisted
	Notice string
}

// NewMessageParams carries the caller supplied fields of a new message
type NewMessageParams struct {
	MessageID       string
	SourceConnector string
	TargetConnector string
	Direction       Direction
	Type            string
	SourcePayload   Payload
	IdempotencyKey  string
	MaxRetries      int
}

// NewIntegrationMessage creates a PENDING message with its payload hash computed.
// The idempotency key defaults to the message id.
func NewIntegrationMessage(p NewMessageParams, now time.Time) (*IntegrationMessage, error) {
	if strings.TrimSpace(p.MessageID) == "" {
		return nil, ErrInvalidMessage.WithMessage("messageId is required")
	}
	if p.SourceConnector == "" || p.TargetConnector == "" {
		return nil, ErrInvalidMessage.WithMessage("sourceConnector and targetConnector are required")
	}
	if p.Type == "" {
		return nil, ErrInvalidMessage.WithMessage("type is required")
	}
	if p.Direction == "" {
		p.Direction = DirectionOutbound
	}
	if !p.Direction.IsValid() {
		return nil, ErrInvalidMessage.WithMessage("Unknown direction: " + string(p.Direction))
	}
	if p.MaxRetries < 0 {
		return nil, ErrInvalidMessage.WithMessage("maxRetries cannot be negative")
	}
	if p.SourcePayload == nil {
		p.SourcePayload = Payload{}
	}
	key := p.IdempotencyKey
	if key == "" {
		key = p.MessageID
	}
	hash, err := p.SourcePayload.Hash()
	if err != nil {
		return nil, ErrInvalidMessage.WithMessage("sourcePayload is not serializable")
	}

	return &IntegrationMessage{
		BaseEntity:      shared.NewBaseEntityAt(now),
		MessageID:       p.MessageID,
		SourceConnector: p.SourceConnector,
		TargetConnector: p.TargetConnector,
		Direction:       p.Direction,
		Type:            p.Type,
		SourcePayload:   p.SourcePayload,
		Status:          MessageStatusPending,
		MaxRetries:      p.MaxRetries,
		IdempotencyKey:  key,
		ProcessedHash:   hash,
		ReceivedAt:      now,
	}, nil
}

// BeginAttempt marks the start of a processing attempt
func (m *IntegrationMessage) BeginAttempt(now time.Time) error {
	if m.Status.IsTerminal() {
		return ErrMessageTerminal
	}
	m.Status = MessageStatusProcessing
	m.ProcessedAt = &now
	m.Touch(now)
	return nil
}

// ApplyTransform stores the transformation outcome on the message
func (m *IntegrationMessage) ApplyTransform(result TransformResult, now time.Time) {
	m.CanonicalPayload = result.CanonicalPayload
	m.TargetPayload = result.TargetPayload
	m.TransformErrors = result.Errors
	if result.TransformationID != uuid.Nil {
		id := result.TransformationID
		m.TransformationID = &id
	}
	if result.Success() {
		m.TargetType = result.TargetType
		m.TransformedAt = &now
	}
	m.Touch(now)
}

// Complete marks a successful delivery
func (m *IntegrationMessage) Complete(now time.Time) {
	m.Status = MessageStatusCompleted
	m.CompletedAt = &now
	m.NextRetryAt = nil
	m.LastError = ""
	m.Touch(now)
}

// CanRetry reports whether another retry is allowed
func (m *IntegrationMessage) CanRetry() bool {
	return m.RetryCount < m.MaxRetries
}

// ScheduleRetry consumes one retry and schedules the next attempt
func (m *IntegrationMessage) ScheduleRetry(nextAt time.Time, reason string, now time.Time) {
	m.RetryCount++
	m.Defer(nextAt, reason, now)
}

// Defer schedules the next attempt without consuming a retry
func (m *IntegrationMessage) Defer(nextAt time.Time, reason string, now time.Time) {
	m.Status = MessageStatusRetrying
	m.NextRetryAt = &nextAt
	m.LastError = reason
	m.Touch(now)
}

// MarkDeadLetter ends the processing pass in the dead letter queue
func (m *IntegrationMessage) MarkDeadLetter(reason DeadLetterReason, errMsg string, now time.Time) {
	m.Status = MessageStatusDeadLetter
	m.FailedAt = &now
	m.NextRetryAt = nil
	m.LastError = errMsg
	if m.ErrorDetails == nil {
		m.ErrorDetails = map[string]any{}
	}
	m.ErrorDetails["reason"] = string(reason)
	m.Touch(now)
}

// MarkFailed records a message that could not be routed at all
func (m *IntegrationMessage) MarkFailed(errMsg string, now time.Time) {
	m.Status = MessageStatusFailed
	m.FailedAt = &now
	m.LastError = errMsg
	m.Touch(now)
}

// ResetForReprocess starts a fresh processing pass. Completed messages are
// never reprocessed and in-flight messages must finish their attempt first.
func (m *IntegrationMessage) ResetForReprocess(now time.Time) error {
	switch m.Status {
	case MessageStatusCompleted:
		return ErrMessageAlreadyCompleted
	case MessageStatusProcessing:
		return shared.ErrInvalidState.WithMessage("Message is currently being processed")
	}
	m.Status = MessageStatusPending
	m.RetryCount = 0
	m.NextRetryAt = nil
	m.LastError = ""
	m.ErrorDetails = nil
	m.FailedAt = nil
	m.CompletedAt = nil
	m.CanonicalPayload = nil
	m.TargetPayload = nil
	m.TransformErrors = nil
	m.TransformedAt = nil
	m.Touch(now)
	return nil
}

// IsDue reports whether a RETRYING message may be attempted at now
func (m *IntegrationMessage) IsDue(now time.Time) bool {
	return m.Status == MessageStatusRetrying && (m.NextRetryAt == nil || !m.NextRetryAt.After(now))
}

// DeliveryPayload is the payload sent to the target connector
func (m *IntegrationMessage) DeliveryPayload() Payload {
	if m.TargetPayload != nil {
		return m.TargetPayload
	}
	return m.SourcePayload
}

// DeliveryType is the message type announced to the target connector
func (m *IntegrationMessage) DeliveryType() string {
	if m.TargetType != "" {
		return m.TargetType
	}
	return m.Type
}

// MessageFilter filters message listings
type MessageFilter struct {
	shared.Filter
	Status          MessageStatus
	SourceConnector string
	TargetConnector string
	Type            string
	MessageID       string
	From            *time.Time
	To              *time.Time
}

// MessageRepository persists integration messages
type MessageRepository interface {
	Create(ctx context.Context, m *IntegrationMessage) error
	Save(ctx context.Context, m *IntegrationMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*IntegrationMessage, error)
	// FindLatestByIdempotencyKey skips FAILED records and returns
	// ErrMessageNotFound when no admitted message has the key
	FindLatestByIdempotencyKey(ctx context.Context, key string) (*IntegrationMessage, error)
	FindAll(ctx context.Context, filter MessageFilter) ([]IntegrationMessage, int64, error)
	// ClaimDue atomically moves due RETRYING messages to PROCESSING and returns them
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]IntegrationMessage, error)
	// RequeueStale returns PROCESSING messages last attempted before cutoff to RETRYING
	RequeueStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}
