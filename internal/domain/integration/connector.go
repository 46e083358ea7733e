package integration

import (
	"regexp"
	"time"

	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Connector enums
// ---------------------------------------------------------------------------

// ConnectorType classifies the external system behind a connector
type ConnectorType string

const (
	ConnectorTypeERP          ConnectorType = "ERP"
	ConnectorTypeEcommerce    ConnectorType = "ECOMMERCE"
	ConnectorTypeEDI          ConnectorType = "EDI"
	ConnectorTypeFiscal       ConnectorType = "FISCAL"
	ConnectorTypeFileTransfer ConnectorType = "FILE_TRANSFER"
	ConnectorTypeCustom       ConnectorType = "CUSTOM"
)

// IsValid checks if the connector type is valid
func (t ConnectorType) IsValid() bool {
	switch t {
	case ConnectorTypeERP, ConnectorTypeEcommerce, ConnectorTypeEDI,
		ConnectorTypeFiscal, ConnectorTypeFileTransfer, ConnectorTypeCustom:
		return true
	}
	return false
}

// Direction describes which way messages flow through a connector
type Direction string

const (
	DirectionInbound       Direction = "INBOUND"
	DirectionOutbound      Direction = "OUTBOUND"
	DirectionBidirectional Direction = "BIDIRECTIONAL"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionBidirectional:
		return true
	}
	return false
}

// Transport names the delivery adapter used to reach a connector
type Transport string

const (
	TransportHTTP     Transport = "HTTP"
	TransportKafka    Transport = "KAFKA"
	TransportS3       Transport = "S3"
	TransportLoopback Transport = "LOOPBACK"
)

// IsValid checks if the transport is valid
func (t Transport) IsValid() bool {
	switch t {
	case TransportHTTP, TransportKafka, TransportS3, TransportLoopback:
		return true
	}
	return false
}

// HealthStatus is the last known health of a connector
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// Default protection settings applied to new connectors
const (
	DefaultFailureThreshold       = 5
	DefaultSuccessThreshold       = 3
	DefaultRateLimitWindowSeconds = 60
)

var connectorCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// ---------------------------------------------------------------------------
// Connector Entity
// ---------------------------------------------------------------------------

// Connector is a named external system endpoint. Identity and transport
// settings are edited by administrators; rate-limit, circuit and counter
// fields are only mutated by the hub pipeline through ConnectorRepository.Mutate.
type Connector struct {
	shared.BaseEntity

	// Code is the unique, stable name used for routing
	Code string
	// Name is a human readable label
	Name string
	// Type classifies the external system
	Type ConnectorType
	// Direction is the flow direction supported by the connector
	Direction Direction
	// IsActive disables routing to the connector when false
	IsActive bool

	// Transport selects the delivery adapter
	Transport Transport
	// Endpoint is the transport address (URL, topic or bucket)
	Endpoint string
	// Settings carries transport specific options (headers, prefix, topic)
	Settings map[string]string
	// SigningSecret signs outbound HTTP deliveries when set
	SigningSecret string
	// Timeout bounds a single delivery; zero uses the hub default
	Timeout time.Duration

	// RateLimit is the max number of deliveries per window, nil for unlimited
	RateLimit *int
	// RateLimitWindowSeconds is the fixed window length
	RateLimitWindowSeconds int
	// CurrentCount is the number of admitted deliveries in the current window
	CurrentCount int
	// WindowStart is when the current window began
	WindowStart *time.Time

	// CircuitState is the breaker state
	CircuitState CircuitState
	// FailureCount counts failures since the last reset
	FailureCount int
	// FailureThreshold opens the circuit when reached while CLOSED
	FailureThreshold int
	// SuccessCount counts trial successes while HALF_OPEN
	SuccessCount int
	// SuccessThreshold closes the circuit when reached while HALF_OPEN
	SuccessThreshold int
	// LastFailureAt is the time of the last recorded failure
	LastFailureAt *time.Time
	// CircuitOpenedAt is when the circuit last transitioned to OPEN
	CircuitOpenedAt *time.Time

	// HealthStatus is the last known health
	HealthStatus HealthStatus
	// LastHealthCheck is when health was last probed
	LastHealthCheck *time.Time
	// LastHealthError holds the error of a failed probe
	LastHealthError string

	// TotalMessages counts messages routed to the connector
	TotalMessages int64
	// SuccessfulMessages counts completed deliveries
	SuccessfulMessages int64
	// FailedMessages counts messages moved to the dead letter queue
	FailedMessages int64
}

// NewConnector creates a connector with a closed circuit and default thresholds
func NewConnector(code, name string, connectorType ConnectorType, direction Direction, transport Transport) (*Connector, error) {
	c := &Connector{
		BaseEntity:             shared.NewBaseEntity(),
		Code:                   code,
		Name:                   name,
		Type:                   connectorType,
		Direction:              direction,
		IsActive:               true,
		Transport:              transport,
		Settings:               map[string]string{},
		RateLimitWindowSeconds: DefaultRateLimitWindowSeconds,
		CircuitState:           CircuitClosed,
		FailureThreshold:       DefaultFailureThreshold,
		SuccessThreshold:       DefaultSuccessThreshold,
		HealthStatus:           HealthStatusUnknown,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate validates the connector configuration
func (c *Connector) Validate() error {
	if !connectorCodePattern.MatchString(c.Code) {
		return ErrInvalidConnectorCode
	}
	if c.Name == "" {
		return ErrInvalidConnector.WithMessage("Connector name is required")
	}
	if !c.Type.IsValid() {
		return ErrInvalidConnector.WithMessage("Unknown connector type: " + string(c.Type))
	}
	if !c.Direction.IsValid() {
		return ErrInvalidConnector.WithMessage("Unknown connector direction: " + string(c.Direction))
	}
	if !c.Transport.IsValid() {
		return ErrInvalidConnector.WithMessage("Unknown connector transport: " + string(c.Transport))
	}
	if c.Transport != TransportLoopback && c.Endpoint == "" {
		return ErrInvalidConnector.WithMessage("Endpoint is required for transport " + string(c.Transport))
	}
	if c.RateLimit != nil && *c.RateLimit < 1 {
		return ErrInvalidConnector.WithMessage("Rate limit must be at least 1")
	}
	if c.RateLimitWindowSeconds < 1 {
		return ErrInvalidConnector.WithMessage("Rate limit window must be at least 1 second")
	}
	if c.FailureThreshold < 1 || c.SuccessThreshold < 1 {
		return ErrInvalidConnector.WithMessage("Circuit thresholds must be at least 1")
	}
	if c.Timeout < 0 {
		return ErrInvalidConnector.WithMessage("Timeout cannot be negative")
	}
	return nil
}

// Activate enables routing to the connector
func (c *Connector) Activate() {
	c.IsActive = true
	c.Touch(time.Now())
}

// Deactivate stops routing to the connector
func (c *Connector) Deactivate() {
	c.IsActive = false
	c.Touch(time.Now())
}

// Setting returns a transport setting or the fallback when unset
func (c *Connector) Setting(key, fallback string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

// RecordMessageReceived counts a new message routed to this connector
func (c *Connector) RecordMessageReceived(now time.Time) {
	c.TotalMessages++
	c.Touch(now)
}

// RecordDeadLetter counts a message moved to the dead letter queue
func (c *Connector) RecordDeadLetter(now time.Time) {
	c.FailedMessages++
	c.Touch(now)
}

// RecordHealthProbe stores the outcome of an active health probe
func (c *Connector) RecordHealthProbe(probeErr error, now time.Time) {
	c.LastHealthCheck = &now
	if probeErr != nil {
		c.HealthStatus = HealthStatusUnhealthy
		c.LastHealthError = probeErr.Error()
	} else {
		c.LastHealthError = ""
		c.refreshHealth()
	}
	c.Touch(now)
}

// refreshHealth derives the health status from the circuit state
func (c *Connector) refreshHealth() {
	switch c.CircuitState {
	case CircuitOpen:
		c.HealthStatus = HealthStatusUnhealthy
	case CircuitHalfOpen:
		c.HealthStatus = HealthStatusDegraded
	default:
		if c.FailureCount > 0 {
			c.HealthStatus = HealthStatusDegraded
		} else {
			c.HealthStatus = HealthStatusHealthy
		}
	}
}

// ---------------------------------------------------------------------------
// Health snapshot
// ---------------------------------------------------------------------------

// HealthSnapshot is a read-only view of a connector's health
type HealthSnapshot struct {
	Code               string
	IsActive           bool
	HealthStatus       HealthStatus
	CircuitState       CircuitState
	FailureCount       int
	SuccessRate        decimal.Decimal
	TotalMessages      int64
	SuccessfulMessages int64
	FailedMessages     int64
	LastFailureAt      *time.Time
	CircuitOpenedAt    *time.Time
	LastHealthCheck    *time.Time
	LastHealthError    string
}

// Snapshot returns the connector's health view. SuccessRate is the share
// of routed messages that completed, as a percentage with two decimals.
func (c *Connector) Snapshot() HealthSnapshot {
	rate := decimal.Zero
	if c.TotalMessages > 0 {
		rate = decimal.NewFromInt(c.SuccessfulMessages).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(c.TotalMessages)).
			Round(2)
	}
	return HealthSnapshot{
		Code:               c.Code,
		IsActive:           c.IsActive,
		HealthStatus:       c.HealthStatus,
		CircuitState:       c.CircuitState,
		FailureCount:       c.FailureCount,
		SuccessRate:        rate,
		TotalMessages:      c.TotalMessages,
		SuccessfulMessages: c.SuccessfulMessages,
		FailedMessages:     c.FailedMessages,
		LastFailureAt:      c.LastFailureAt,
		CircuitOpenedAt:    c.CircuitOpenedAt,
		LastHealthCheck:    c.LastHealthCheck,
		LastHealthError:    c.LastHealthError,
	}
}

// ConnectorFilter filters connector listings
type ConnectorFilter struct {
	shared.Filter
	Type     ConnectorType
	IsActive *bool
	Search   string
}
