package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/erp/integration-hub/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func disabledTracing() telemetry.TracingConfig {
	return telemetry.TracingConfig{
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "integration-hub",
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, disabledTracing(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())

	_, span := tp.Tracer("hub-test").Start(ctx, "route")
	span.End()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, tp.Shutdown(cancelled))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("exports to a local collector")
	}
	ctx := context.Background()
	cfg := disabledTracing()
	cfg.Enabled = true
	cfg.Insecure = true

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("hub-test").Start(ctx, "route")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()
	_ = tp.Shutdown(ctx)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := telemetry.NewSampler(tt.ratio).Description()
		assert.Contains(t, desc, "ParentBased{root:"+tt.root, tt.ratio)
	}
}

func TestNewSampler_FollowsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	result := telemetry.NewSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "deliver",
	})
	assert.Equal(t, sdktrace.RecordAndSample, result.Decision)
}

func TestTracingConfigFrom(t *testing.T) {
	cfg := telemetry.TracingConfigFrom(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.25,
		ServiceName:       "integration-hub",
		Insecure:          true,
	})

	assert.Equal(t, telemetry.TracingConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.25,
		ServiceName:       "integration-hub",
		Insecure:          true,
	}, cfg)
}
