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

// DeadLetterRepository stores dead letter entries in memory
type DeadLetterRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]integration.DeadLetterEntry
}

// NewDeadLetterRepository creates an empty dead letter repository
func NewDeadLetterRepository() *DeadLetterRepository {
	return &DeadLetterRepository{entries: make(map[uuid.UUID]integration.DeadLetterEntry)}
}

// Create stores a new entry
func (r *DeadLetterRepository) Create(_ context.Context, e *integration.DeadLetterEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = cloneDeadLetter(e)
	return nil
}

// Save replaces a stored entry
func (r *DeadLetterRepository) Save(_ context.Context, e *integration.DeadLetterEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; !ok {
		return integration.ErrDeadLetterNotFound
	}
	r.entries[e.ID] = cloneDeadLetter(e)
	return nil
}

// ClaimReprocess stamps the entry under the write lock
func (r *DeadLetterRepository) ClaimReprocess(_ context.Context, id uuid.UUID, actor string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return integration.ErrDeadLetterNotFound
	}
	if err := e.MarkReprocessed(actor, at); err != nil {
		return err
	}
	r.entries[id] = e
	return nil
}

// FindByID returns a copy of the entry
func (r *DeadLetterRepository) FindByID(_ context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, integration.ErrDeadLetterNotFound
	}
	out := cloneDeadLetter(&e)
	return &out, nil
}

// FindOpenByMessageID returns the unreprocessed entry of a message
func (r *DeadLetterRepository) FindOpenByMessageID(_ context.Context, messageID uuid.UUID) (*integration.DeadLetterEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.MessageID == messageID && !e.IsReprocessed() {
			out := cloneDeadLetter(&e)
			return &out, nil
		}
	}
	return nil, integration.ErrDeadLetterNotFound
}

// FindAll lists entries oldest first
func (r *DeadLetterRepository) FindAll(_ context.Context, filter integration.DeadLetterFilter) ([]integration.DeadLetterEntry, int64, error) {
	r.mu.RLock()
	var matched []integration.DeadLetterEntry
	for _, e := range r.entries {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, e.ID) {
			continue
		}
		if filter.Connector != "" && e.Connector != filter.Connector {
			continue
		}
		if filter.Reason != "" && e.Reason != filter.Reason {
			continue
		}
		if filter.Retryable != nil && e.Retryable != *filter.Retryable {
			continue
		}
		if filter.Reprocessed != nil && e.IsReprocessed() != *filter.Reprocessed {
			continue
		}
		matched = append(matched, cloneDeadLetter(&e))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if filter.OrderDir == "desc" {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Offset(), filter.PageSize), int64(len(matched)), nil
}

// Stats aggregates all entries
func (r *DeadLetterRepository) Stats(_ context.Context) (*integration.DeadLetterStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := integration.NewDeadLetterStats()
	for _, e := range r.entries {
		stats.Add(&e)
	}
	return stats, nil
}

func cloneDeadLetter(e *integration.DeadLetterEntry) integration.DeadLetterEntry {
	out := *e
	out.Payload = e.Payload.Clone()
	out.ReprocessedAt = cloneTime(e.ReprocessedAt)
	return out
}
