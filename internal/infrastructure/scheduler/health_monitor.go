package scheduler

import (
	"context"
	"time"

	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthChecker lists connectors and probes them
type HealthChecker interface {
	ListHealth(ctx context.Context) ([]appintegration.HealthResponse, error)
	CheckHealth(ctx context.Context, code string) (*appintegration.HealthResponse, error)
}

// HealthMonitorConfig holds health monitor configuration
type HealthMonitorConfig struct {
	Interval    time.Duration
	Concurrency int
}

// HealthMonitor probes every active connector on an interval and records
// the result on the connector
type HealthMonitor struct {
	config  HealthMonitorConfig
	checker HealthChecker
	logger  *zap.Logger
	loop    *loop
}

// NewHealthMonitor creates a health monitor
func NewHealthMonitor(config HealthMonitorConfig, checker HealthChecker, logger *zap.Logger) *HealthMonitor {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HealthMonitor{config: config, checker: checker, logger: logger.Named("health_monitor")}
	m.loop = &loop{name: "Health monitor", interval: config.Interval, logger: m.logger, tick: func(ctx context.Context) {
		_, _ = m.RunOnce(ctx)
	}}
	return m
}

// Start launches the probing loop
func (m *HealthMonitor) Start(ctx context.Context) error {
	return m.loop.start(ctx)
}

// Stop stops probing, bounded by ctx
func (m *HealthMonitor) Stop(ctx context.Context) error {
	return m.loop.stop(ctx)
}

// RunOnce probes every active connector and returns how many are unhealthy
func (m *HealthMonitor) RunOnce(ctx context.Context) (int, error) {
	connectors, err := m.checker.ListHealth(ctx)
	if err != nil {
		m.logger.Error("Failed to list connectors for health check", zap.Error(err))
		return 0, err
	}

	results := make([]bool, len(connectors))
	var g errgroup.Group
	g.SetLimit(m.config.Concurrency)
	for i, c := range connectors {
		if !c.IsActive {
			continue
		}
		g.Go(func() error {
			res, err := m.checker.CheckHealth(ctx, c.Code)
			if err != nil {
				m.logger.Error("Health check failed", zap.String("connector", c.Code), zap.Error(err))
				return nil
			}
			results[i] = res.Status == string(integration.HealthStatusUnhealthy)
			return nil
		})
	}
	_ = g.Wait()

	unhealthy := 0
	for _, bad := range results {
		if bad {
			unhealthy++
		}
	}
	m.logger.Debug("Connector health sweep finished",
		zap.Int("connectors", len(connectors)),
		zap.Int("unhealthy", unhealthy),
	)
	return unhealthy, nil
}
