package models

import (
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MessageModel is the persistence model of integration.IntegrationMessage
type MessageModel struct {
	BaseModel
	MessageID       string                `gorm:"type:varchar(255);not null;index"`
	SourceConnector string                `gorm:"type:varchar(100);not null;index"`
	TargetConnector string                `gorm:"type:varchar(100);not null;index"`
	Direction       integration.Direction `gorm:"type:varchar(20);not null"`
	Type            string                `gorm:"type:varchar(100);not null;index"`
	TargetType      string                `gorm:"type:varchar(100)"`

	SourcePayload    datatypes.JSONMap
	CanonicalPayload datatypes.JSONMap
	TargetPayload    datatypes.JSONMap
	TransformationID *uuid.UUID `gorm:"type:uuid"`
	TransformedAt    *time.Time
	TransformErrors  datatypes.JSONSlice[string]

	Status       integration.MessageStatus `gorm:"type:varchar(20);not null;index:idx_messages_due,priority:1"`
	RetryCount   int                       `gorm:"not null;default:0"`
	MaxRetries   int                       `gorm:"not null;default:0"`
	NextRetryAt  *time.Time                `gorm:"index:idx_messages_due,priority:2"`
	LastError    string                    `gorm:"type:text"`
	ErrorDetails datatypes.JSONMap

	IdempotencyKey string `gorm:"type:varchar(255);not null;index:idx_messages_idempotency,priority:1"`
	ProcessedHash  string `gorm:"type:varchar(64);not null"`
	IsDuplicate    bool   `gorm:"not null;default:false"`

	ReceivedAt  time.Time `gorm:"not null;index:idx_messages_idempotency,priority:2"`
	ProcessedAt *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "integration_messages"
}

// ToDomain converts the model to a domain message. Empty stage payloads load
// as nil so an untransformed message stays distinguishable.
func (m *MessageModel) ToDomain() *integration.IntegrationMessage {
	source := integration.Payload(m.SourcePayload)
	if source == nil {
		source = integration.Payload{}
	}
	var details map[string]any
	if len(m.ErrorDetails) > 0 {
		details = map[string]any(m.ErrorDetails)
	}
	var errs []string
	if len(m.TransformErrors) > 0 {
		errs = []string(m.TransformErrors)
	}
	return &integration.IntegrationMessage{
		BaseEntity:       m.BaseModel.ToDomain(),
		MessageID:        m.MessageID,
		SourceConnector:  m.SourceConnector,
		TargetConnector:  m.TargetConnector,
		Direction:        m.Direction,
		Type:             m.Type,
		TargetType:       m.TargetType,
		SourcePayload:    source,
		CanonicalPayload: stagePayload(m.CanonicalPayload),
		TargetPayload:    stagePayload(m.TargetPayload),
		TransformationID: m.TransformationID,
		TransformedAt:    m.TransformedAt,
		TransformErrors:  errs,
		Status:           m.Status,
		RetryCount:       m.RetryCount,
		MaxRetries:       m.MaxRetries,
		NextRetryAt:      m.NextRetryAt,
		LastError:        m.LastError,
		ErrorDetails:     details,
		IdempotencyKey:   m.IdempotencyKey,
		ProcessedHash:    m.ProcessedHash,
		IsDuplicate:      m.IsDuplicate,
		ReceivedAt:       m.ReceivedAt,
		ProcessedAt:      m.ProcessedAt,
		CompletedAt:      m.CompletedAt,
		FailedAt:         m.FailedAt,
	}
}

// FromDomain populates the model from a domain message
func (m *MessageModel) FromDomain(msg *integration.IntegrationMessage) {
	m.FromDomainBaseEntity(msg.BaseEntity)
	m.MessageID = msg.MessageID
	m.SourceConnector = msg.SourceConnector
	m.TargetConnector = msg.TargetConnector
	m.Direction = msg.Direction
	m.Type = msg.Type
	m.TargetType = msg.TargetType
	m.SourcePayload = datatypes.JSONMap(msg.SourcePayload)
	m.CanonicalPayload = datatypes.JSONMap(msg.CanonicalPayload)
	m.TargetPayload = datatypes.JSONMap(msg.TargetPayload)
	m.TransformationID = msg.TransformationID
	m.TransformedAt = msg.TransformedAt
	m.TransformErrors = datatypes.JSONSlice[string](msg.TransformErrors)
	m.Status = msg.Status
	m.RetryCount = msg.RetryCount
	m.MaxRetries = msg.MaxRetries
	m.NextRetryAt = msg.NextRetryAt
	m.LastError = msg.LastError
	m.ErrorDetails = datatypes.JSONMap(msg.ErrorDetails)
	m.IdempotencyKey = msg.IdempotencyKey
	m.ProcessedHash = msg.ProcessedHash
	m.IsDuplicate = msg.IsDuplicate
	m.ReceivedAt = msg.ReceivedAt
	m.ProcessedAt = msg.ProcessedAt
	m.CompletedAt = msg.CompletedAt
	m.FailedAt = msg.FailedAt
}

// MessageModelFromDomain creates a model from a domain message
func MessageModelFromDomain(msg *integration.IntegrationMessage) *MessageModel {
	m := &MessageModel{}
	m.FromDomain(msg)
	return m
}

func stagePayload(p datatypes.JSONMap) integration.Payload {
	if len(p) == 0 {
		return nil
	}
	return integration.Payload(p)
}
