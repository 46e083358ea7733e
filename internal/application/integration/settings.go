package integration

import (
	"context"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// Settings tunes the hub pipeline
type Settings struct {
	Retry integration.RetryPolicy
	// CircuitCooldown is how long an OPEN circuit rejects before a trial
	CircuitCooldown time.Duration
	// FailureThreshold and SuccessThreshold apply to connectors registered
	// without their own thresholds
	FailureThreshold int
	SuccessThreshold int
	// CircuitMaxWait dead-letters messages deferred by an OPEN circuit for longer
	CircuitMaxWait time.Duration
	// DeliveryTimeout bounds a delivery when the connector has no timeout
	DeliveryTimeout time.Duration
	// BulkReprocessLimit is the default cap of a bulk reprocess
	BulkReprocessLimit int
	// MaxBulkReprocessLimit is the hard cap of a bulk reprocess
	MaxBulkReprocessLimit int
	// IdempotencyTTL is how long idempotency fingerprints stay cached
	IdempotencyTTL time.Duration
}

// DefaultSettings returns the built-in pipeline settings
func DefaultSettings() Settings {
	return Settings{
		Retry:                 integration.DefaultRetryPolicy(),
		CircuitCooldown:       30 * time.Second,
		FailureThreshold:      integration.DefaultFailureThreshold,
		SuccessThreshold:      integration.DefaultSuccessThreshold,
		CircuitMaxWait:        24 * time.Hour,
		DeliveryTimeout:       30 * time.Second,
		BulkReprocessLimit:    100,
		MaxBulkReprocessLimit: 1000,
		IdempotencyTTL:        24 * time.Hour,
	}
}

// Clock returns the current time
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Metrics receives pipeline events
type Metrics interface {
	MessageRouted(ctx context.Context, status integration.MessageStatus)
	DuplicateDetected(ctx context.Context)
	DeliveryFinished(ctx context.Context, connector string, success bool, elapsed time.Duration)
	RateLimited(ctx context.Context, connector string)
	CircuitTransitioned(ctx context.Context, connector string, to integration.CircuitState)
	DeadLettered(ctx context.Context, reason integration.DeadLetterReason)
}

// NopMetrics discards all pipeline events
type NopMetrics struct{}

func (NopMetrics) MessageRouted(context.Context, integration.MessageStatus) {}
func (NopMetrics) DuplicateDetected(context.Context) {}
func (NopMetrics) DeliveryFinished(context.Context, string, bool, time.Duration) {}
func (NopMetrics) RateLimited(context.Context, string) {}
func (NopMetrics) CircuitTransitioned(context.Context, string, integration.CircuitState) {}
func (NopMetrics) DeadLettered(context.Context, integration.DeadLetterReason) {}
