package integration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DeliveryReceipt describes a completed delivery
type DeliveryReceipt struct {
	// StatusCode is the transport status when the transport has one
	StatusCode int
	// Reference identifies the delivered artifact (object key, partition/offset)
	Reference string
	Duration  time.Duration
}

// DeliveryGateway delivers transformed messages to target connectors
type DeliveryGateway interface {
	Deliver(ctx context.Context, connector *Connector, msg *IntegrationMessage) (*DeliveryReceipt, error)
	// Probe checks that the connector's endpoint is reachable
	Probe(ctx context.Context, connector *Connector) error
}

// DeliveryError is a failed delivery classified as retryable or permanent
type DeliveryError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewRetryableDeliveryError wraps err as a transient failure
func NewRetryableDeliveryError(statusCode int, err error) *DeliveryError {
	return &DeliveryError{StatusCode: statusCode, Retryable: true, Err: err}
}

// NewPermanentDeliveryError wraps err as a permanent rejection
func NewPermanentDeliveryError(statusCode int, err error) *DeliveryError {
	return &DeliveryError{StatusCode: statusCode, Retryable: false, Err: err}
}

// IsRetryableDeliveryError reports whether a delivery failure is transient.
// Timeouts and unclassified errors are treated as transient.
func IsRetryableDeliveryError(err error) bool {
	if err == nil {
		return false
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return true
}
