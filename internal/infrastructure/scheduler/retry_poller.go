package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RetryProcessor claims and processes due retries
type RetryProcessor interface {
	ClaimDue(ctx context.Context, limit int) ([]integration.IntegrationMessage, error)
	ProcessMessage(ctx context.Context, msg *integration.IntegrationMessage) (*integration.IntegrationMessage, error)
	RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// RetryPollerConfig holds retry poller configuration
type RetryPollerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	// StaleAfter requeues PROCESSING messages untouched for this long; zero disables
	StaleAfter time.Duration
}

// DefaultRetryPollerConfig returns default retry poller configuration
func DefaultRetryPollerConfig() RetryPollerConfig {
	return RetryPollerConfig{
		Interval:    time.Minute,
		BatchSize:   100,
		Concurrency: 4,
		StaleAfter:  10 * time.Minute,
	}
}

// RetryPoller periodically claims RETRYING messages whose nextRetryAt has
// passed and processes them with bounded concurrency. Claims are atomic, so
// several hub instances can poll the same store.
type RetryPoller struct {
	config    RetryPollerConfig
	processor RetryProcessor
	logger    *zap.Logger
	loop      *loop
}

// NewRetryPoller creates a retry poller
func NewRetryPoller(config RetryPollerConfig, processor RetryProcessor, logger *zap.Logger) *RetryPoller {
	defaults := DefaultRetryPollerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RetryPoller{config: config, processor: processor, logger: logger.Named("retry_poller")}
	p.loop = &loop{name: "Retry poller", interval: config.Interval, logger: p.logger, tick: func(ctx context.Context) {
		_, _ = p.RunOnce(ctx)
	}}
	return p
}

// Start launches the polling loop
func (p *RetryPoller) Start(ctx context.Context) error {
	return p.loop.start(ctx)
}

// Stop stops polling and waits for in-flight messages, bounded by ctx
func (p *RetryPoller) Stop(ctx context.Context) error {
	return p.loop.stop(ctx)
}

// IsRunning reports whether the loop is active
func (p *RetryPoller) IsRunning() bool {
	return p.loop.running()
}

// RunOnce requeues stale messages, then claims and processes due batches
// until a batch comes back short. It returns the number processed.
func (p *RetryPoller) RunOnce(ctx context.Context) (int, error) {
	if p.config.StaleAfter > 0 {
		if _, err := p.processor.RequeueStale(ctx, p.config.StaleAfter); err != nil {
			p.logger.Error("Failed to requeue stale messages", zap.Error(err))
		}
	}

	var processed int64
	for ctx.Err() == nil {
		batch, err := p.processor.ClaimDue(ctx, p.config.BatchSize)
		if err != nil {
			p.logger.Error("Failed to claim due messages", zap.Error(err))
			return int(processed), err
		}
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(p.config.Concurrency)
		for i := range batch {
			msg := &batch[i]
			g.Go(func() error {
				if _, err := p.processor.ProcessMessage(ctx, msg); err != nil {
					p.logger.Error("Retry attempt failed",
						zap.String("message_id", msg.MessageID),
						zap.String("connector", msg.TargetConnector),
						zap.Error(err),
					)
					return nil
				}
				atomic.AddInt64(&processed, 1)
				return nil
			})
		}
		_ = g.Wait()

		if len(batch) < p.config.BatchSize {
			break
		}
	}

	if processed > 0 {
		p.logger.Info("Processed due retries", zap.Int64("count", processed))
	}
	return int(processed), nil
}
