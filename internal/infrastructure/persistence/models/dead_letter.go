package models

import (
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DeadLetterModel is the persistence model of integration.DeadLetterEntry
type DeadLetterModel struct {
	BaseModel
	MessageID         uuid.UUID                    `gorm:"type:uuid;not null;index"`
	OriginalMessageID string                       `gorm:"type:varchar(255);not null"`
	Connector         string                       `gorm:"type:varchar(100);not null;index"`
	MessageType       string                       `gorm:"type:varchar(100);not null"`
	Reason            integration.DeadLetterReason `gorm:"type:varchar(40);not null;index"`
	ErrorMessage      string                       `gorm:"type:text"`
	Payload           datatypes.JSONMap
	Retryable         bool `gorm:"not null;default:false"`
	RetryCount        int  `gorm:"not null;default:0"`
	ReprocessedAt     *time.Time
	ReprocessedBy     string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (DeadLetterModel) TableName() string {
	return "dead_letter_entries"
}

// ToDomain converts the model to a domain dead letter entry
func (m *DeadLetterModel) ToDomain() *integration.DeadLetterEntry {
	payload := integration.Payload(m.Payload)
	if payload == nil {
		payload = integration.Payload{}
	}
	return &integration.DeadLetterEntry{
		BaseEntity:        m.BaseModel.ToDomain(),
		MessageID:         m.MessageID,
		OriginalMessageID: m.OriginalMessageID,
		Connector:         m.Connector,
		MessageType:       m.MessageType,
		Reason:            m.Reason,
		ErrorMessage:      m.ErrorMessage,
		Payload:           payload,
		Retryable:         m.Retryable,
		RetryCount:        m.RetryCount,
		ReprocessedAt:     m.ReprocessedAt,
		ReprocessedBy:     m.ReprocessedBy,
	}
}

// FromDomain populates the model from a domain dead letter entry
func (m *DeadLetterModel) FromDomain(e *integration.DeadLetterEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.MessageID = e.MessageID
	m.OriginalMessageID = e.OriginalMessageID
	m.Connector = e.Connector
	m.MessageType = e.MessageType
	m.Reason = e.Reason
	m.ErrorMessage = e.ErrorMessage
	m.Payload = datatypes.JSONMap(e.Payload)
	m.Retryable = e.Retryable
	m.RetryCount = e.RetryCount
	m.ReprocessedAt = e.ReprocessedAt
	m.ReprocessedBy = e.ReprocessedBy
}

// DeadLetterModelFromDomain creates a model from a domain dead letter entry
func DeadLetterModelFromDomain(e *integration.DeadLetterEntry) *DeadLetterModel {
	m := &DeadLetterModel{}
	m.FromDomain(e)
	return m
}
