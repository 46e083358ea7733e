package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/erp/integration-hub/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newManualProvider(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader(reader, "hub-test", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumFor returns the counter value of the data point carrying all attrs
func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range attrs {
			v, found := dp.Attributes.Value(kv.Key)
			if !found || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "integration-hub",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	require.NotNil(t, mp.Meter("hub"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, mp.Shutdown(cancelled))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Needs a collector on localhost:14317
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "integration-hub",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())
	_ = mp.Shutdown(ctx)
}

func TestMetricsConfigFrom(t *testing.T) {
	cfg := telemetry.MetricsConfigFrom(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		ServiceName:       "integration-hub",
		Insecure:          true,
		MetricsInterval:   15 * time.Second,
	})

	assert.Equal(t, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		ExportInterval:    15 * time.Second,
		ServiceName:       "integration-hub",
		Insecure:          true,
	}, cfg)
}

func TestMeterProviderWithReader(t *testing.T) {
	mp, reader := newManualProvider(t)
	assert.True(t, mp.IsEnabled())

	counter, err := telemetry.NewCounter(mp.Meter("hub"), "test_total", "Test counter", "1")
	require.NoError(t, err)
	counter.Add(context.Background(), 5, attribute.String("connector", "SAP_ERP"))
	counter.Inc(context.Background(), attribute.String("connector", "SAP_ERP"))
	counter.Inc(context.Background(), attribute.String("connector", "SALESFORCE"))

	m, ok := findMetric(collect(t, reader), "test_total")
	require.True(t, ok)
	assert.Equal(t, int64(6), sumFor(t, m, attribute.String("connector", "SAP_ERP")))
	assert.Equal(t, int64(7), sumFor(t, m))
}

func TestHistogram_RecordMillis(t *testing.T) {
	mp, reader := newManualProvider(t)

	histogram, err := telemetry.NewHistogram(mp.Meter("hub"), telemetry.HistogramOpts{
		Name:        "test_duration_ms",
		Description: "Test duration",
		Unit:        "ms",
		Boundaries:  telemetry.DeliveryDurationBuckets,
	})
	require.NoError(t, err)

	histogram.RecordMillis(context.Background(), 250*time.Millisecond)
	histogram.Record(context.Background(), 40)

	m, ok := findMetric(collect(t, reader), "test_duration_ms")
	require.True(t, ok)
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)

	dp := data.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 290.0, dp.Sum, 0.001)
	assert.Equal(t, telemetry.DeliveryDurationBuckets, dp.Bounds)
}

func TestHistogram_NoBoundaries(t *testing.T) {
	mp, _ := newManualProvider(t)

	histogram, err := telemetry.NewHistogram(mp.Meter("hub"), telemetry.HistogramOpts{
		Name: "plain_histogram",
		Unit: "ms",
	})
	require.NoError(t, err)
	histogram.Record(context.Background(), 1)
}
