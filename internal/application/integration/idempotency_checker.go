package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"go.uber.org/zap"
)

// IdempotencyResult is the outcome of an idempotency check
type IdempotencyResult struct {
	IsDuplicate bool
	// Existing is the earlier message when IsDuplicate is set
	Existing *integration.IntegrationMessage
}

// IdempotencyChecker detects repeated submissions by key and payload hash
type IdempotencyChecker struct {
	messages integration.MessageRepository
	cache    integration.IdempotencyCache
	ttl      time.Duration
	logger   *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	holders int
}

// NewIdempotencyChecker creates a checker. cache may be nil.
func NewIdempotencyChecker(
	messages integration.MessageRepository,
	cache integration.IdempotencyCache,
	ttl time.Duration,
	logger *zap.Logger,
) *IdempotencyChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyChecker{
		messages: messages,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		locks:    make(map[string]*keyLock),
	}
}

// CheckIdempotency compares payload against the most recent message stored
// under key. Messages that were never admitted (FAILED) do not count.
func (c *IdempotencyChecker) CheckIdempotency(ctx context.Context, key string, payload integration.Payload) (*IdempotencyResult, error) {
	hash, err := payload.Hash()
	if err != nil {
		return nil, integration.ErrInvalidMessage.WithMessage("sourcePayload is not serializable")
	}

	if c.cache != nil {
		record, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Idempotency cache lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok && record.Hash != hash {
			return &IdempotencyResult{}, nil
		} else if ok {
			existing, err := c.messages.FindByID(ctx, record.MessageID)
			if err == nil {
				return c.compare(existing, hash), nil
			}
			if !errors.Is(err, integration.ErrMessageNotFound) {
				return nil, err
			}
		}
	}

	existing, err := c.messages.FindLatestByIdempotencyKey(ctx, key)
	if errors.Is(err, integration.ErrMessageNotFound) {
		return &IdempotencyResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return c.compare(existing, hash), nil
}

// Lock serializes admission of messages sharing key within this process so
// a check and the insert that follows it are not interleaved. The returned
// func releases the lock.
func (c *IdempotencyChecker) Lock(key string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.holders++
	c.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.locksMu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(c.locks, key)
		}
		c.locksMu.Unlock()
	}
}

// Remember caches the fingerprint of a newly stored message
func (c *IdempotencyChecker) Remember(ctx context.Context, msg *integration.IntegrationMessage) {
	if c.cache == nil {
		return
	}
	record := integration.IdempotencyRecord{MessageID: msg.ID, Hash: msg.ProcessedHash}
	if err := c.cache.Put(ctx, msg.IdempotencyKey, record, c.ttl); err != nil {
		c.logger.Warn("Idempotency cache write failed",
			zap.String("key", msg.IdempotencyKey),
			zap.Error(err),
		)
	}
}

func (c *IdempotencyChecker) compare(existing *integration.IntegrationMessage, hash string) *IdempotencyResult {
	if existing.Status == integration.MessageStatusFailed || existing.ProcessedHash != hash {
		return &IdempotencyResult{}
	}
	return &IdempotencyResult{IsDuplicate: true, Existing: existing}
}
