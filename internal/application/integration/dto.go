package integration

import (
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Message DTOs
// ---------------------------------------------------------------------------

// RouteMessageRequest is a message submitted to the hub
type RouteMessageRequest struct {
	MessageID       string              `json:"messageId" binding:"required,max=200"`
	SourceConnector string              `json:"sourceConnector" binding:"required,max=64"`
	TargetConnector string              `json:"targetConnector" binding:"required,max=64"`
	Direction       string              `json:"direction" binding:"omitempty,oneof=INBOUND OUTBOUND BIDIRECTIONAL"`
	Type            string              `json:"type" binding:"required,max=100"`
	SourcePayload   integration.Payload `json:"sourcePayload"`
	IdempotencyKey  string              `json:"idempotencyKey" binding:"omitempty,max=200"`
	MaxRetries      *int                `json:"maxRetries" binding:"omitempty,min=0,max=50"`
}

// ReprocessMessageRequest identifies a message to run again
type ReprocessMessageRequest struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// MessageResponse is an integration message in API responses
type MessageResponse struct {
	ID               uuid.UUID           `json:"id"`
	MessageID        string              `json:"messageId"`
	SourceConnector  string              `json:"sourceConnector"`
	TargetConnector  string              `json:"targetConnector"`
	Direction        string              `json:"direction"`
	Type             string              `json:"type"`
	TargetType       string              `json:"targetType,omitempty"`
	SourcePayload    integration.Payload `json:"sourcePayload"`
	CanonicalPayload integration.Payload `json:"canonicalPayload,omitempty"`
	TargetPayload    integration.Payload `json:"targetPayload,omitempty"`
	TransformationID *uuid.UUID          `json:"transformationId,omitempty"`
	TransformErrors  []string            `json:"transformErrors,omitempty"`
	Status           string              `json:"status"`
	RetryCount       int                 `json:"retryCount"`
	MaxRetries       int                 `json:"maxRetries"`
	NextRetryAt      *time.Time          `json:"nextRetryAt,omitempty"`
	LastError        string              `json:"lastError,omitempty"`
	ErrorDetails     map[string]any      `json:"errorDetails,omitempty"`
	IdempotencyKey   string              `json:"idempotencyKey"`
	ProcessedHash    string              `json:"processedHash"`
	IsDuplicate      bool                `json:"isDuplicate"`
	// Error carries informational remarks such as "Duplicate message"
	Error       string     `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ToMessageResponse converts a message to its API form
func ToMessageResponse(m *integration.IntegrationMessage) *MessageResponse {
	return &MessageResponse{
		ID:               m.ID,
		MessageID:        m.MessageID,
		SourceConnector:  m.SourceConnector,
		TargetConnector:  m.TargetConnector,
		Direction:        string(m.Direction),
		Type:             m.Type,
		TargetType:       m.TargetType,
		SourcePayload:    m.SourcePayload,
		CanonicalPayload: m.CanonicalPayload,
		TargetPayload:    m.TargetPayload,
		TransformationID: m.TransformationID,
		TransformErrors:  m.TransformErrors,
		Status:           string(m.Status),
		RetryCount:       m.RetryCount,
		MaxRetries:       m.MaxRetries,
		NextRetryAt:      m.NextRetryAt,
		LastError:        m.LastError,
		ErrorDetails:     m.ErrorDetails,
		IdempotencyKey:   m.IdempotencyKey,
		ProcessedHash:    m.ProcessedHash,
		IsDuplicate:      m.IsDuplicate,
		Error:            m.Notice,
		ReceivedAt:       m.ReceivedAt,
		ProcessedAt:      m.ProcessedAt,
		CompletedAt:      m.CompletedAt,
		FailedAt:         m.FailedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Connector DTOs
// ---------------------------------------------------------------------------

// CreateConnectorRequest registers a connector
type CreateConnectorRequest struct {
	Code                   string            `json:"code" binding:"required,min=2,max=64"`
	Name                   string            `json:"name" binding:"required,min=1,max=200"`
	Type                   string            `json:"type" binding:"required,oneof=ERP ECOMMERCE EDI FISCAL FILE_TRANSFER CUSTOM"`
	Direction              string            `json:"direction" binding:"omitempty,oneof=INBOUND OUTBOUND BIDIRECTIONAL"`
	Transport              string            `json:"transport" binding:"omitempty,oneof=HTTP KAFKA S3 LOOPBACK"`
	Endpoint               string            `json:"endpoint" binding:"max=2000"`
	Settings               map[string]string `json:"settings"`
	SigningSecret          string            `json:"signingSecret" binding:"max=500"`
	TimeoutSeconds         int               `json:"timeoutSeconds" binding:"min=0,max=600"`
	IsActive               *bool             `json:"isActive"`
	RateLimit              *int              `json:"rateLimit" binding:"omitempty,min=1"`
	RateLimitWindowSeconds int               `json:"rateLimitWindowSeconds" binding:"min=0"`
	FailureThreshold       int               `json:"failureThreshold" binding:"min=0"`
	SuccessThreshold       int               `json:"successThreshold" binding:"min=0"`
}

// UpdateConnectorRequest changes the administrative fields of a connector
type UpdateConnectorRequest struct {
	Name                   *string            `json:"name" binding:"omitempty,min=1,max=200"`
	Type                   *string            `json:"type" binding:"omitempty,oneof=ERP ECOMMERCE EDI FISCAL FILE_TRANSFER CUSTOM"`
	Direction              *string            `json:"direction" binding:"omitempty,oneof=INBOUND OUTBOUND BIDIRECTIONAL"`
	Transport              *string            `json:"transport" binding:"omitempty,oneof=HTTP KAFKA S3 LOOPBACK"`
	Endpoint               *string            `json:"endpoint" binding:"omitempty,max=2000"`
	Settings               *map[string]string `json:"settings"`
	SigningSecret          *string            `json:"signingSecret" binding:"omitempty,max=500"`
	TimeoutSeconds         *int               `json:"timeoutSeconds" binding:"omitempty,min=0,max=600"`
	IsActive               *bool              `json:"isActive"`
	RateLimit              *int               `json:"rateLimit" binding:"omitempty,min=1"`
	ClearRateLimit         bool               `json:"clearRateLimit"`
	RateLimitWindowSeconds *int               `json:"rateLimitWindowSeconds" binding:"omitempty,min=1"`
	FailureThreshold       *int               `json:"failureThreshold" binding:"omitempty,min=1"`
	SuccessThreshold       *int               `json:"successThreshold" binding:"omitempty,min=1"`
}

// ConnectorResponse is a connector in API responses. The signing secret is
// never returned.
type ConnectorResponse struct {
	ID                     uuid.UUID         `json:"id"`
	Code                   string            `json:"code"`
	Name                   string            `json:"name"`
	Type                   string            `json:"type"`
	Direction              string            `json:"direction"`
	IsActive               bool              `json:"isActive"`
	Transport              string            `json:"transport"`
	Endpoint               string            `json:"endpoint"`
	Settings               map[string]string `json:"settings"`
	Signed                 bool              `json:"signed"`
	TimeoutSeconds         int               `json:"timeoutSeconds"`
	RateLimit              *int              `json:"rateLimit"`
	RateLimitWindowSeconds int               `json:"rateLimitWindowSeconds"`
	CurrentCount           int               `json:"currentCount"`
	WindowStart            *time.Time        `json:"windowStart,omitempty"`
	CircuitState           string            `json:"circuitState"`
	FailureCount           int               `json:"failureCount"`
	FailureThreshold       int               `json:"failureThreshold"`
	SuccessCount           int               `json:"successCount"`
	SuccessThreshold       int               `json:"successThreshold"`
	LastFailureAt          *time.Time        `json:"lastFailureAt,omitempty"`
	CircuitOpenedAt        *time.Time        `json:"circuitOpenedAt,omitempty"`
	HealthStatus           string            `json:"healthStatus"`
	LastHealthCheck        *time.Time        `json:"lastHealthCheck,omitempty"`
	TotalMessages          int64             `json:"totalMessages"`
	SuccessfulMessages     int64             `json:"successfulMessages"`
	FailedMessages         int64             `json:"failedMessages"`
	CreatedAt              time.Time         `json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
}

// ToConnectorResponse converts a connector to its API form
func ToConnectorResponse(c *integration.Connector) *ConnectorResponse {
	return &ConnectorResponse{
		ID:                     c.ID,
		Code:                   c.Code,
		Name:                   c.Name,
		Type:                   string(c.Type),
		Direction:              string(c.Direction),
		IsActive:               c.IsActive,
		Transport:              string(c.Transport),
		Endpoint:               c.Endpoint,
		Settings:               c.Settings,
		Signed:                 c.SigningSecret != "",
		TimeoutSeconds:         int(c.Timeout / time.Second),
		RateLimit:              c.RateLimit,
		RateLimitWindowSeconds: c.RateLimitWindowSeconds,
		CurrentCount:           c.CurrentCount,
		WindowStart:            c.WindowStart,
		CircuitState:           string(c.CircuitState),
		FailureCount:           c.FailureCount,
		FailureThreshold:       c.FailureThreshold,
		SuccessCount:           c.SuccessCount,
		SuccessThreshold:       c.SuccessThreshold,
		LastFailureAt:          c.LastFailureAt,
		CircuitOpenedAt:        c.CircuitOpenedAt,
		HealthStatus:           string(c.HealthStatus),
		LastHealthCheck:        c.LastHealthCheck,
		TotalMessages:          c.TotalMessages,
		SuccessfulMessages:     c.SuccessfulMessages,
		FailedMessages:         c.FailedMessages,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

// HealthResponse is a connector health snapshot
type HealthResponse struct {
	Code               string          `json:"code"`
	IsActive           bool            `json:"isActive"`
	Status             string          `json:"status"`
	CircuitState       string          `json:"circuitState"`
	FailureCount       int             `json:"failureCount"`
	SuccessRate        decimal.Decimal `json:"successRate"`
	TotalMessages      int64           `json:"totalMessages"`
	SuccessfulMessages int64           `json:"successfulMessages"`
	FailedMessages     int64           `json:"failedMessages"`
	LastFailureAt      *time.Time      `json:"lastFailureAt,omitempty"`
	CircuitOpenedAt    *time.Time      `json:"circuitOpenedAt,omitempty"`
	LastHealthCheck    *time.Time      `json:"lastHealthCheck,omitempty"`
	LastHealthError    string          `json:"lastHealthError,omitempty"`
}

// ToHealthResponse converts a health snapshot to its API form
func ToHealthResponse(s integration.HealthSnapshot) *HealthResponse {
	return &HealthResponse{
		Code:               s.Code,
		IsActive:           s.IsActive,
		Status:             string(s.HealthStatus),
		CircuitState:       string(s.CircuitState),
		FailureCount:       s.FailureCount,
		SuccessRate:        s.SuccessRate,
		TotalMessages:      s.TotalMessages,
		SuccessfulMessages: s.SuccessfulMessages,
		FailedMessages:     s.FailedMessages,
		LastFailureAt:      s.LastFailureAt,
		CircuitOpenedAt:    s.CircuitOpenedAt,
		LastHealthCheck:    s.LastHealthCheck,
		LastHealthError:    s.LastHealthError,
	}
}

// RateLimitResponse is the rate limit state of a connector
type RateLimitResponse struct {
	Code          string     `json:"code"`
	RateLimit     *int       `json:"rateLimit"`
	WindowSeconds int        `json:"windowSeconds"`
	CurrentCount  int        `json:"currentCount"`
	WindowStart   *time.Time `json:"windowStart,omitempty"`
	Note          string     `json:"note"`
}

// ---------------------------------------------------------------------------
// Transformation DTOs
// ---------------------------------------------------------------------------

// CreateTransformationRequest creates a transformation rule
type CreateTransformationRequest struct {
	Name              string                  `json:"name" binding:"required,min=1,max=200"`
	Description       string                  `json:"description" binding:"max=2000"`
	SourceConnector   string                  `json:"sourceConnector" binding:"required,max=64"`
	TargetConnector   string                  `json:"targetConnector" binding:"required,max=64"`
	SourceType        string                  `json:"sourceType" binding:"required,max=100"`
	TargetType        string                  `json:"targetType" binding:"required,max=100"`
	IsActive          *bool                   `json:"isActive"`
	Priority          int                     `json:"priority"`
	SourceToCanonical integration.MappingSpec `json:"sourceToCanonical"`
	CanonicalToTarget integration.MappingSpec `json:"canonicalToTarget"`
}

// UpdateTransformationRequest changes a transformation rule
type UpdateTransformationRequest struct {
	Name              *string                  `json:"name" binding:"omitempty,min=1,max=200"`
	Description       *string                  `json:"description" binding:"omitempty,max=2000"`
	TargetType        *string                  `json:"targetType" binding:"omitempty,min=1,max=100"`
	IsActive          *bool                    `json:"isActive"`
	Priority          *int                     `json:"priority"`
	SourceToCanonical *integration.MappingSpec `json:"sourceToCanonical"`
	CanonicalToTarget *integration.MappingSpec `json:"canonicalToTarget"`
}

// TestTransformationRequest transforms a sample payload with the stored rules
type TestTransformationRequest struct {
	SourceConnector string              `json:"sourceConnector" binding:"required"`
	TargetConnector string              `json:"targetConnector" binding:"required"`
	SourceType      string              `json:"sourceType" binding:"required"`
	TargetType      string              `json:"targetType"`
	Payload         integration.Payload `json:"payload"`
}

// TransformationResponse is a transformation rule in API responses
type TransformationResponse struct {
	ID                uuid.UUID               `json:"id"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	SourceConnector   string                  `json:"sourceConnector"`
	TargetConnector   string                  `json:"targetConnector"`
	SourceType        string                  `json:"sourceType"`
	TargetType        string                  `json:"targetType"`
	IsActive          bool                    `json:"isActive"`
	Priority          int                     `json:"priority"`
	SourceToCanonical integration.MappingSpec `json:"sourceToCanonical"`
	CanonicalToTarget integration.MappingSpec `json:"canonicalToTarget"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
}

// ToTransformationResponse converts a rule to its API form
func ToTransformationResponse(t *integration.Transformation) *TransformationResponse {
	return &TransformationResponse{
		ID:                t.ID,
		Name:              t.Name,
		Description:       t.Description,
		SourceConnector:   t.SourceConnector,
		TargetConnector:   t.TargetConnector,
		SourceType:        t.SourceType,
		TargetType:        t.TargetType,
		IsActive:          t.IsActive,
		Priority:          t.Priority,
		SourceToCanonical: t.SourceToCanonical,
		CanonicalToTarget: t.CanonicalToTarget,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TransformResultResponse is the outcome of a transformation
type TransformResultResponse struct {
	Success          bool                `json:"success"`
	Outcome          string              `json:"outcome"`
	TransformationID *uuid.UUID          `json:"transformationId,omitempty"`
	TargetType       string              `json:"targetType,omitempty"`
	CanonicalPayload integration.Payload `json:"canonicalPayload,omitempty"`
	TargetPayload    integration.Payload `json:"targetPayload,omitempty"`
	Errors           []string            `json:"errors,omitempty"`
}

// ToTransformResultResponse converts a transform result to its API form
func ToTransformResultResponse(r integration.TransformResult) *TransformResultResponse {
	out := &TransformResultResponse{
		Success:          r.Success(),
		Outcome:          string(r.Outcome),
		TargetType:       r.TargetType,
		CanonicalPayload: r.CanonicalPayload,
		TargetPayload:    r.TargetPayload,
		Errors:           r.Errors,
	}
	if r.TransformationID != uuid.Nil {
		id := r.TransformationID
		out.TransformationID = &id
	}
	return out
}

// ---------------------------------------------------------------------------
// Dead letter DTOs
// ---------------------------------------------------------------------------

// ReprocessDeadLetterRequest identifies a dead letter entry to reprocess
type ReprocessDeadLetterRequest struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// BulkReprocessRequest selects dead letter entries to reprocess
type BulkReprocessRequest struct {
	IDs       []uuid.UUID `json:"ids" binding:"omitempty,max=1000"`
	Connector string      `json:"connector"`
	Reason    string      `json:"reason" binding:"omitempty,oneof=MAX_RETRIES_EXCEEDED TRANSFORMATION_FAILED CIRCUIT_OPEN VALIDATION_ERROR DELIVERY_REJECTED CONNECTOR_UNAVAILABLE"`
	Retryable *bool       `json:"retryable"`
	Limit     int         `json:"limit" binding:"min=0"`
}

// DeadLetterResponse is a dead letter entry in API responses
type DeadLetterResponse struct {
	ID                uuid.UUID           `json:"id"`
	MessageID         uuid.UUID           `json:"messageId"`
	OriginalMessageID string              `json:"originalMessageId"`
	Connector         string              `json:"connector"`
	MessageType       string              `json:"messageType"`
	Reason            string              `json:"reason"`
	ErrorMessage      string              `json:"errorMessage"`
	Payload           integration.Payload `json:"payload"`
	Retryable         bool                `json:"retryable"`
	RetryCount        int                 `json:"retryCount"`
	ReprocessedAt     *time.Time          `json:"reprocessedAt,omitempty"`
	ReprocessedByID   string              `json:"reprocessedById,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// ToDeadLetterResponse converts an entry to its API form
func ToDeadLetterResponse(e *integration.DeadLetterEntry) *DeadLetterResponse {
	return &DeadLetterResponse{
		ID:                e.ID,
		MessageID:         e.MessageID,
		OriginalMessageID: e.OriginalMessageID,
		Connector:         e.Connector,
		MessageType:       e.MessageType,
		Reason:            string(e.Reason),
		ErrorMessage:      e.ErrorMessage,
		Payload:           e.Payload,
		Retryable:         e.Retryable,
		RetryCount:        e.RetryCount,
		ReprocessedAt:     e.ReprocessedAt,
		ReprocessedByID:   e.ReprocessedBy,
		CreatedAt:         e.CreatedAt,
	}
}

// ReprocessResponse is the result of reprocessing one dead letter entry
type ReprocessResponse struct {
	DeadLetter *DeadLetterResponse `json:"deadLetter"`
	Message    *MessageResponse    `json:"message"`
}

// DeadLetterStatsResponse aggregates the dead letter queue
type DeadLetterStatsResponse struct {
	Total       int64            `json:"total"`
	Retryable   int64            `json:"retryable"`
	Reprocessed int64            `json:"reprocessed"`
	Pending     int64            `json:"pending"`
	ByConnector map[string]int64 `json:"byConnector"`
	ByReason    map[string]int64 `json:"byReason"`
}

// ToDeadLetterStatsResponse converts stats to their API form
func ToDeadLetterStatsResponse(s *integration.DeadLetterStats) *DeadLetterStatsResponse {
	byReason := make(map[string]int64, len(s.ByReason))
	for k, v := range s.ByReason {
		byReason[string(k)] = v
	}
	return &DeadLetterStatsResponse{
		Total:       s.Total,
		Retryable:   s.Retryable,
		Reprocessed: s.Reprocessed,
		Pending:     s.Pending,
		ByConnector: s.ByConnector,
		ByReason:    byReason,
	}
}
