package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	SlowQueryThresh time.Duration
	DBName          string
	// WithVariables includes bound query parameters in span statements.
	// Message payloads reach the database as parameters, keep it off outside development.
	WithVariables bool
	// TracerProvider overrides the global provider when set
	TracerProvider trace.TracerProvider
}

// DBTracingConfigFrom derives the database tracing configuration from the telemetry settings
func DBTracingConfigFrom(cfg config.TelemetryConfig, dbName string) DBTracingConfig {
	thresh := cfg.DBSlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	return DBTracingConfig{
		Enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		SlowQueryThresh: thresh,
		DBName:          dbName,
	}
}

type queryStartKey struct{}

// callbackRegistrar is satisfied by the positioned callbacks of gorm's processors
type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

type callbackRegistration struct {
	name      string
	registrar callbackRegistrar
	fn        func(*gorm.DB)
}

func tracingCallbacks(db *gorm.DB, after func(*gorm.DB)) []callbackRegistration {
	cb := db.Callback()
	return []callbackRegistration{
		{"hub_trace:before_create", cb.Create().Before("gorm:create"), markQueryStart},
		{"hub_trace:before_query", cb.Query().Before("gorm:query"), markQueryStart},
		{"hub_trace:before_update", cb.Update().Before("gorm:update"), markQueryStart},
		{"hub_trace:before_delete", cb.Delete().Before("gorm:delete"), markQueryStart},
		{"hub_trace:before_row", cb.Row().Before("gorm:row"), markQueryStart},
		{"hub_trace:before_raw", cb.Raw().Before("gorm:raw"), markQueryStart},
		{"hub_trace:after_create", cb.Create().After("gorm:create").Before("otel:after_create"), after},
		{"hub_trace:after_query", cb.Query().After("gorm:query").Before("otel:after_query"), after},
		{"hub_trace:after_update", cb.Update().After("gorm:update").Before("otel:after_update"), after},
		{"hub_trace:after_delete", cb.Delete().After("gorm:delete").Before("otel:after_delete"), after},
		{"hub_trace:after_row", cb.Row().After("gorm:row").Before("otel:after_row"), after},
		{"hub_trace:after_raw", cb.Raw().After("gorm:raw").Before("otel:after_raw"), after},
	}
}

// RegisterDBTracing installs the otelgorm plugin and a callback that marks
// slow statements and errors on the statement span. The annotating callback
// runs before otelgorm ends the span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	for _, reg := range tracingCallbacks(db, slowQueryAnnotator(cfg.SlowQueryThresh)) {
		if err := reg.registrar.Register(reg.name, reg.fn); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
		zap.Bool("with_variables", cfg.WithVariables),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func slowQueryAnnotator(thresh time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > thresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("threshold_ms", thresh.Milliseconds()),
			))
		}
	}
}
