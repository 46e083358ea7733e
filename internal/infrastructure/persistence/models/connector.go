package models

import (
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"gorm.io/datatypes"
)

// ConnectorModel is the persistence model of integration.Connector
type ConnectorModel struct {
	BaseModel
	Code      string                    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name      string                    `gorm:"type:varchar(200);not null"`
	Type      integration.ConnectorType `gorm:"type:varchar(30);not null;index"`
	Direction integration.Direction     `gorm:"type:varchar(20);not null"`
	IsActive  bool                      `gorm:"not null;default:true"`

	Transport     integration.Transport                 `gorm:"type:varchar(20);not null"`
	Endpoint      string                                `gorm:"type:varchar(500)"`
	Settings      datatypes.JSONType[map[string]string] `gorm:"column:settings"`
	SigningSecret string                                `gorm:"type:varchar(255)"`
	TimeoutMs     int64                                 `gorm:"not null;default:0"`

	RateLimit              *int
	RateLimitWindowSeconds int        `gorm:"not null;default:60"`
	CurrentCount           int        `gorm:"not null;default:0"`
	WindowStart            *time.Time

	CircuitState     integration.CircuitState `gorm:"type:varchar(20);not null;default:'CLOSED'"`
	FailureCount     int                      `gorm:"not null;default:0"`
	FailureThreshold int                      `gorm:"not null;default:5"`
	SuccessCount     int                      `gorm:"not null;default:0"`
	SuccessThreshold int                      `gorm:"not null;default:3"`
	LastFailureAt    *time.Time
	CircuitOpenedAt  *time.Time

	HealthStatus    integration.HealthStatus `gorm:"type:varchar(20);not null;default:'UNKNOWN'"`
	LastHealthCheck *time.Time
	LastHealthError string `gorm:"type:text"`

	TotalMessages      int64 `gorm:"not null;default:0"`
	SuccessfulMessages int64 `gorm:"not null;default:0"`
	FailedMessages     int64 `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ConnectorModel) TableName() string {
	return "connectors"
}

// ToDomain converts the model to a domain connector
func (m *ConnectorModel) ToDomain() *integration.Connector {
	return &integration.Connector{
		BaseEntity:             m.BaseModel.ToDomain(),
		Code:                   m.Code,
		Name:                   m.Name,
		Type:                   m.Type,
		Direction:              m.Direction,
		IsActive:               m.IsActive,
		Transport:              m.Transport,
		Endpoint:               m.Endpoint,
		Settings:               m.Settings.Data(),
		SigningSecret:          m.SigningSecret,
		Timeout:                time.Duration(m.TimeoutMs) * time.Millisecond,
		RateLimit:              m.RateLimit,
		RateLimitWindowSeconds: m.RateLimitWindowSeconds,
		CurrentCount:           m.CurrentCount,
		WindowStart:            m.WindowStart,
		CircuitState:           m.CircuitState,
		FailureCount:           m.FailureCount,
		FailureThreshold:       m.FailureThreshold,
		SuccessCount:           m.SuccessCount,
		SuccessThreshold:       m.SuccessThreshold,
		LastFailureAt:          m.LastFailureAt,
		CircuitOpenedAt:        m.CircuitOpenedAt,
		HealthStatus:           m.HealthStatus,
		LastHealthCheck:        m.LastHealthCheck,
		LastHealthError:        m.LastHealthError,
		TotalMessages:          m.TotalMessages,
		SuccessfulMessages:     m.SuccessfulMessages,
		FailedMessages:         m.FailedMessages,
	}
}

// FromDomain populates the model from a domain connector
func (m *ConnectorModel) FromDomain(c *integration.Connector) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Code = c.Code
	m.Name = c.Name
	m.Type = c.Type
	m.Direction = c.Direction
	m.IsActive = c.IsActive
	m.Transport = c.Transport
	m.Endpoint = c.Endpoint
	m.Settings = datatypes.NewJSONType(c.Settings)
	m.SigningSecret = c.SigningSecret
	m.TimeoutMs = c.Timeout.Milliseconds()
	m.RateLimit = c.RateLimit
	m.RateLimitWindowSeconds = c.RateLimitWindowSeconds
	m.CurrentCount = c.CurrentCount
	m.WindowStart = c.WindowStart
	m.CircuitState = c.CircuitState
	m.FailureCount = c.FailureCount
	m.FailureThreshold = c.FailureThreshold
	m.SuccessCount = c.SuccessCount
	m.SuccessThreshold = c.SuccessThreshold
	m.LastFailureAt = c.LastFailureAt
	m.CircuitOpenedAt = c.CircuitOpenedAt
	m.HealthStatus = c.HealthStatus
	m.LastHealthCheck = c.LastHealthCheck
	m.LastHealthError = c.LastHealthError
	m.TotalMessages = c.TotalMessages
	m.SuccessfulMessages = c.SuccessfulMessages
	m.FailedMessages = c.FailedMessages
}

// ConnectorModelFromDomain creates a model from a domain connector
func ConnectorModelFromDomain(c *integration.Connector) *ConnectorModel {
	m := &ConnectorModel{}
	m.FromDomain(c)
	return m
}
