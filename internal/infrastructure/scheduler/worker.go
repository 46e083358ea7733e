// Package scheduler runs the hub's background loops: the retry poller that
// drains due retries and the health monitor that probes connectors.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs tick every interval until stopped. tick also runs once
// immediately on Start.
type loop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	logger   *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

func (l *loop) start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isRunning {
		return ErrAlreadyRunning
	}
	if l.interval <= 0 {
		return ErrInvalidConfig
	}
	l.isRunning = true

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)

	l.logger.Info(l.name+" started", zap.Duration("interval", l.interval))
	return nil
}

func (l *loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// stop cancels the loop and waits for the current tick, bounded by ctx
func (l *loop) stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = false
	l.cancel()
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		l.logger.Info(l.name + " stopped gracefully")
		return nil
	case <-ctx.Done():
		l.logger.Warn(l.name + " stop timed out")
		return ctx.Err()
	}
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isRunning
}
