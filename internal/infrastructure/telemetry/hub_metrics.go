package telemetry

import (
	"context"
	"time"

	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/erp/integration-hub/internal/domain/integration"
	"go.opentelemetry.io/otel/metric"
)

// Hub metric names
const (
	MetricMessagesRouted     = "hub_messages_routed_total"
	MetricDuplicates         = "hub_duplicates_total"
	MetricDeliveries         = "hub_deliveries_total"
	MetricDeliveryDuration   = "hub_delivery_duration_ms"
	MetricRateLimited        = "hub_rate_limited_total"
	MetricCircuitTransitions = "hub_circuit_transitions_total"
	MetricDeadLetters        = "hub_dead_letters_total"
)

// Delivery outcome values of the outcome attribute
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// HubMetrics records pipeline events as OpenTelemetry instruments
type HubMetrics struct {
	routed      *Counter
	duplicates  *Counter
	deliveries  *Counter
	duration    *Histogram
	rateLimited *Counter
	transitions *Counter
	deadLetters *Counter
}

var _ appintegration.Metrics = (*HubMetrics)(nil)

// NewHubMetrics creates the pipeline instruments on meter
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	m := &HubMetrics{}
	var err error

	counters := []struct {
		target      **Counter
		name        string
		description string
	}{
		{&m.routed, MetricMessagesRouted, "Messages accepted by the router, by resulting status"},
		{&m.duplicates, MetricDuplicates, "Messages rejected as duplicates within the idempotency window"},
		{&m.deliveries, MetricDeliveries, "Delivery attempts, by connector and outcome"},
		{&m.rateLimited, MetricRateLimited, "Deliveries deferred by a connector rate limit"},
		{&m.transitions, MetricCircuitTransitions, "Circuit breaker state changes, by connector and target state"},
		{&m.deadLetters, MetricDeadLetters, "Messages moved to the dead letter queue, by reason"},
	}
	for _, c := range counters {
		if *c.target, err = NewCounter(meter, c.name, c.description, "1"); err != nil {
			return nil, err
		}
	}

	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        MetricDeliveryDuration,
		Description: "Delivery attempt duration",
		Unit:        "ms",
		Boundaries:  DeliveryDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HubMetrics) MessageRouted(ctx context.Context, status integration.MessageStatus) {
	m.routed.Inc(ctx, AttrStatus.String(string(status)))
}

func (m *HubMetrics) DuplicateDetected(ctx context.Context) {
	m.duplicates.Inc(ctx)
}

func (m *HubMetrics) DeliveryFinished(ctx context.Context, connector string, success bool, elapsed time.Duration) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	m.deliveries.Inc(ctx, AttrConnector.String(connector), AttrOutcome.String(outcome))
	m.duration.RecordMillis(ctx, elapsed, AttrConnector.String(connector))
}

func (m *HubMetrics) RateLimited(ctx context.Context, connector string) {
	m.rateLimited.Inc(ctx, AttrConnector.String(connector))
}

func (m *HubMetrics) CircuitTransitioned(ctx context.Context, connector string, to integration.CircuitState) {
	m.transitions.Inc(ctx, AttrConnector.String(connector), AttrState.String(string(to)))
}

func (m *HubMetrics) DeadLettered(ctx context.Context, reason integration.DeadLetterReason) {
	m.deadLetters.Inc(ctx, AttrReason.String(string(reason)))
}
