package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProcessor hands out a fixed backlog in claim sized batches
type fakeProcessor struct {
	mu          sync.Mutex
	backlog     []integration.IntegrationMessage
	claimErr    error
	failIDs     map[string]bool
	processed   []string
	requeued    int
	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func newBacklog(n int) []integration.IntegrationMessage {
	out := make([]integration.IntegrationMessage, n)
	for i := range out {
		out[i] = integration.IntegrationMessage{MessageID: fmt.Sprintf("msg-%03d", i), Status: integration.MessageStatusProcessing}
	}
	return out
}

func (f *fakeProcessor) ClaimDue(_ context.Context, limit int) ([]integration.IntegrationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if limit > len(f.backlog) {
		limit = len(f.backlog)
	}
	batch := f.backlog[:limit]
	f.backlog = f.backlog[limit:]
	return batch, nil
}

func (f *fakeProcessor) ProcessMessage(_ context.Context, msg *integration.IntegrationMessage) (*integration.IntegrationMessage, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInFlight)
		if n <= prev || atomic.CompareAndSwapInt32(&f.maxInFlight, prev, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[msg.MessageID] {
		return nil, errors.New("database unavailable")
	}
	f.processed = append(f.processed, msg.MessageID)
	return msg, nil
}

func (f *fakeProcessor) RequeueStale(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued++
	return 0, nil
}

func TestRetryPoller_RunOnceDrainsBacklog(t *testing.T) {
	proc := &fakeProcessor{backlog: newBacklog(25)}
	poller := NewRetryPoller(RetryPollerConfig{Interval: time.Minute, BatchSize: 10, Concurrency: 3, StaleAfter: time.Minute}, proc, zap.NewNop())

	n, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Len(t, proc.processed, 25)
	assert.Equal(t, 1, proc.requeued)
}

func TestRetryPoller_BoundsConcurrency(t *testing.T) {
	proc := &fakeProcessor{backlog: newBacklog(12), delay: 10 * time.Millisecond}
	poller := NewRetryPoller(RetryPollerConfig{Interval: time.Minute, BatchSize: 12, Concurrency: 2}, proc, nil)

	_, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&proc.maxInFlight), int32(2))
	assert.Zero(t, proc.requeued, "requeue disabled without StaleAfter")
}

func TestRetryPoller_ProcessingErrorsDoNotStopTheBatch(t *testing.T) {
	proc := &fakeProcessor{backlog: newBacklog(5), failIDs: map[string]bool{"msg-001": true, "msg-003": true}}
	poller := NewRetryPoller(RetryPollerConfig{Interval: time.Minute, BatchSize: 10, Concurrency: 1}, proc, nil)

	n, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{"msg-000", "msg-002", "msg-004"}, proc.processed)
}

func TestRetryPoller_ClaimError(t *testing.T) {
	boom := errors.New("claim failed")
	proc := &fakeProcessor{claimErr: boom}
	poller := NewRetryPoller(RetryPollerConfig{}, proc, nil)

	_, err := poller.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRetryPoller_StartStop(t *testing.T) {
	proc := &fakeProcessor{backlog: newBacklog(3)}
	poller := NewRetryPoller(RetryPollerConfig{Interval: 10 * time.Millisecond, BatchSize: 10}, proc, nil)

	require.NoError(t, poller.Start(context.Background()))
	assert.True(t, poller.IsRunning())
	assert.ErrorIs(t, poller.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.processed) == 3
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, poller.Stop(ctx))
	assert.False(t, poller.IsRunning())
	assert.NoError(t, poller.Stop(ctx), "stopping twice is a no-op")
}

func TestNewRetryPoller_Defaults(t *testing.T) {
	poller := NewRetryPoller(RetryPollerConfig{}, &fakeProcessor{}, nil)
	assert.Equal(t, DefaultRetryPollerConfig().Interval, poller.config.Interval)
	assert.Equal(t, 100, poller.config.BatchSize)
	assert.Equal(t, 4, poller.config.Concurrency)
}
