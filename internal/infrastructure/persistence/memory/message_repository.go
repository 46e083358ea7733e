package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
)

// MessageRepository stores integration messages in memory
type MessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]integration.IntegrationMessage
}

// NewMessageRepository creates an empty message repository
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{messages: make(map[uuid.UUID]integration.IntegrationMessage)}
}

// Create stores a new message
func (r *MessageRepository) Create(_ context.Context, m *integration.IntegrationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = cloneMessage(m)
	return nil
}

// Save replaces a stored message
func (r *MessageRepository) Save(_ context.Context, m *integration.IntegrationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return integration.ErrMessageNotFound
	}
	r.messages[m.ID] = cloneMessage(m)
	return nil
}

// FindByID returns a copy of the message
func (r *MessageRepository) FindByID(_ context.Context, id uuid.UUID) (*integration.IntegrationMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, integration.ErrMessageNotFound
	}
	out := cloneMessage(&m)
	return &out, nil
}

// FindLatestByIdempotencyKey returns the most recently received admitted
// message for key, skipping FAILED records
func (r *MessageRepository) FindLatestByIdempotencyKey(_ context.Context, key string) (*integration.IntegrationMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *integration.IntegrationMessage
	for _, m := range r.messages {
		if m.IdempotencyKey != key || m.Status == integration.MessageStatusFailed {
			continue
		}
		if latest == nil || m.ReceivedAt.After(latest.ReceivedAt) ||
			(m.ReceivedAt.Equal(latest.ReceivedAt) && m.CreatedAt.After(latest.CreatedAt)) {
			c := cloneMessage(&m)
			latest = &c
		}
	}
	if latest == nil {
		return nil, integration.ErrMessageNotFound
	}
	return latest, nil
}

// FindAll lists messages newest first
func (r *MessageRepository) FindAll(_ context.Context, filter integration.MessageFilter) ([]integration.IntegrationMessage, int64, error) {
	r.mu.RLock()
	var matched []integration.IntegrationMessage
	for _, m := range r.messages {
		if !matchesMessage(&m, filter) {
			continue
		}
		matched = append(matched, cloneMessage(&m))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if filter.OrderDir == "asc" {
			return matched[i].ReceivedAt.Before(matched[j].ReceivedAt)
		}
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})
	return paginate(matched, filter.Offset(), filter.PageSize), int64(len(matched)), nil
}

// ClaimDue moves due RETRYING messages to PROCESSING, oldest first
func (r *MessageRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]integration.IntegrationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []uuid.UUID
	for id, m := range r.messages {
		if m.IsDue(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return nextRetry(r.messages[due[i]]).Before(nextRetry(r.messages[due[j]]))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]integration.IntegrationMessage, 0, len(due))
	for _, id := range due {
		m := r.messages[id]
		m.Status = integration.MessageStatusProcessing
		m.ProcessedAt = &now
		m.UpdatedAt = now
		r.messages[id] = m
		claimed = append(claimed, cloneMessage(&m))
	}
	return claimed, nil
}

// RequeueStale returns stuck PROCESSING messages to RETRYING
func (r *MessageRepository) RequeueStale(_ context.Context, cutoff, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.Status != integration.MessageStatusProcessing || m.ProcessedAt == nil || !m.ProcessedAt.Before(cutoff) {
			continue
		}
		next := now
		m.Status = integration.MessageStatusRetrying
		m.NextRetryAt = &next
		m.UpdatedAt = now
		r.messages[id] = m
		n++
	}
	return n, nil
}

func matchesMessage(m *integration.IntegrationMessage, f integration.MessageFilter) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.SourceConnector != "" && m.SourceConnector != f.SourceConnector {
		return false
	}
	if f.TargetConnector != "" && m.TargetConnector != f.TargetConnector {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.MessageID != "" && m.MessageID != f.MessageID {
		return false
	}
	if f.From != nil && m.ReceivedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.ReceivedAt.After(*f.To) {
		return false
	}
	return true
}

func nextRetry(m integration.IntegrationMessage) time.Time {
	if m.NextRetryAt == nil {
		return time.Time{}
	}
	return *m.NextRetryAt
}

func cloneMessage(m *integration.IntegrationMessage) integration.IntegrationMessage {
	out := *m
	out.SourcePayload = m.SourcePayload.Clone()
	out.CanonicalPayload = m.CanonicalPayload.Clone()
	out.TargetPayload = m.TargetPayload.Clone()
	out.TransformErrors = slices.Clone(m.TransformErrors)
	out.ErrorDetails = integration.Payload(m.ErrorDetails).Clone()
	out.TransformationID = cloneUUID(m.TransformationID)
	out.TransformedAt = cloneTime(m.TransformedAt)
	out.NextRetryAt = cloneTime(m.NextRetryAt)
	out.ProcessedAt = cloneTime(m.ProcessedAt)
	out.CompletedAt = cloneTime(m.CompletedAt)
	out.FailedAt = cloneTime(m.FailedAt)
	out.Notice = ""
	return out
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
