// Package memory provides in-process repositories for the integration hub.
// They back single-instance deployments without a database and the
// application test suites.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// ConnectorRepository stores connectors in memory. Read-modify-write cycles
// on a connector are serialized through a per-code mutex.
type ConnectorRepository struct {
	mu         sync.RWMutex
	connectors map[string]integration.Connector

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewConnectorRepository creates an empty connector repository
func NewConnectorRepository() *ConnectorRepository {
	return &ConnectorRepository{
		connectors: make(map[string]integration.Connector),
		locks:      make(map[string]*sync.Mutex),
	}
}

// Create stores a new connector
func (r *ConnectorRepository) Create(_ context.Context, c *integration.Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[c.Code]; exists {
		return integration.ErrConnectorAlreadyExists
	}
	r.connectors[c.Code] = cloneConnector(c)
	return nil
}

// FindByCode returns a copy of the connector
func (r *ConnectorRepository) FindByCode(_ context.Context, code string) (*integration.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[code]
	if !ok {
		return nil, integration.ErrConnectorNotFound
	}
	out := cloneConnector(&c)
	return &out, nil
}

// FindAll lists connectors ordered by code
func (r *ConnectorRepository) FindAll(_ context.Context, filter integration.ConnectorFilter) ([]integration.Connector, int64, error) {
	r.mu.RLock()
	var matched []integration.Connector
	for _, code := range slices.Sorted(maps.Keys(r.connectors)) {
		c := r.connectors[code]
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(c.Code, strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, cloneConnector(&c))
	}
	r.mu.RUnlock()
	return paginate(matched, filter.Filter.Offset(), filter.PageSize), int64(len(matched)), nil
}

// Mutate applies fn to the connector while holding the connector's lock
func (r *ConnectorRepository) Mutate(ctx context.Context, code string, fn func(c *integration.Connector) error) (*integration.Connector, error) {
	lock := r.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.connectors[code]; !ok {
		r.mu.Unlock()
		return nil, integration.ErrConnectorNotFound
	}
	r.connectors[code] = cloneConnector(current)
	r.mu.Unlock()
	return current, nil
}

// Delete removes a connector
func (r *ConnectorRepository) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connectors[code]; !ok {
		return integration.ErrConnectorNotFound
	}
	delete(r.connectors, code)
	return nil
}

func (r *ConnectorRepository) lockFor(code string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[code]
	if !ok {
		l = &sync.Mutex{}
		r.locks[code] = l
	}
	return l
}

func cloneConnector(c *integration.Connector) integration.Connector {
	out := *c
	out.Settings = maps.Clone(c.Settings)
	out.RateLimit = cloneInt(c.RateLimit)
	out.WindowStart = cloneTime(c.WindowStart)
	out.LastFailureAt = cloneTime(c.LastFailureAt)
	out.CircuitOpenedAt = cloneTime(c.CircuitOpenedAt)
	out.LastHealthCheck = cloneTime(c.LastHealthCheck)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

func paginate[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	return items[offset:end]
}
