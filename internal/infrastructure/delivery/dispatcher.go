// Package delivery implements the transports that carry routed messages to
// target connectors.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/logger"
	"github.com/erp/integration-hub/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Transport sends one message over one kind of connection
type Transport interface {
	Send(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error)
	Probe(ctx context.Context, connector *integration.Connector) error
}

// Dispatcher selects the transport declared by each connector
type Dispatcher struct {
	transports map[integration.Transport]Transport
	logger     *zap.Logger
	now        func() time.Time
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithTransport registers t for kind, replacing any previous registration
func WithTransport(kind integration.Transport, t Transport) DispatcherOption {
	return func(d *Dispatcher) { d.transports[kind] = t }
}

// WithDispatcherLogger sets the logger for the dispatcher
func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithDispatcherClock replaces the clock used to time deliveries
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher. LOOPBACK is always registered.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transports: map[integration.Transport]Transport{
			integration.TransportLoopback: NewLoopbackTransport(),
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver implements integration.DeliveryGateway
func (d *Dispatcher) Deliver(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	t, err := d.transportFor(connector)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "delivery.send", trace.SpanKindClient,
		attribute.String(telemetry.SpanAttrMessageID, msg.MessageID),
		attribute.String(telemetry.SpanAttrConnector, connector.Code),
		attribute.String(telemetry.SpanAttrConnectorType, string(connector.Transport)),
		attribute.String(telemetry.SpanAttrMessageType, msg.Type),
	)
	start := d.now()
	receipt, err := t.Send(ctx, connector, msg)
	elapsed := d.now().Sub(start)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.L(ctx).Debug("Delivery failed",
			zap.String("connector", connector.Code),
			zap.String("transport", string(connector.Transport)),
			zap.String("message_id", msg.MessageID),
			zap.Bool("retryable", integration.IsRetryableDeliveryError(err)),
			zap.Error(err),
		)
		return nil, err
	}
	if receipt == nil {
		receipt = &integration.DeliveryReceipt{}
	}
	if receipt.Duration == 0 {
		receipt.Duration = elapsed
	}
	return receipt, nil
}

// Probe implements integration.DeliveryGateway
func (d *Dispatcher) Probe(ctx context.Context, connector *integration.Connector) error {
	t, err := d.transportFor(connector)
	if err != nil {
		return err
	}
	return t.Probe(ctx, connector)
}

func (d *Dispatcher) transportFor(connector *integration.Connector) (Transport, error) {
	t, ok := d.transports[connector.Transport]
	if !ok {
		return nil, integration.NewPermanentDeliveryError(0,
			fmt.Errorf("transport %s is not configured", connector.Transport))
	}
	return t, nil
}

var _ integration.DeliveryGateway = (*Dispatcher)(nil)

// encodePayload renders the payload delivered for msg
func encodePayload(msg *integration.IntegrationMessage) ([]byte, error) {
	body, err := json.Marshal(msg.DeliveryPayload())
	if err != nil {
		return nil, integration.NewPermanentDeliveryError(0, fmt.Errorf("encode payload: %w", err))
	}
	return body, nil
}
