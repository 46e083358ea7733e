package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
)

// TransformationRepository stores transformation rules in memory
type TransformationRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]integration.Transformation
}

// NewTransformationRepository creates an empty transformation repository
func NewTransformationRepository() *TransformationRepository {
	return &TransformationRepository{rules: make(map[uuid.UUID]integration.Transformation)}
}

// Create stores a new rule
func (r *TransformationRepository) Create(_ context.Context, t *integration.Transformation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[t.ID] = cloneTransformation(t)
	return nil
}

// Save replaces a stored rule
func (r *TransformationRepository) Save(_ context.Context, t *integration.Transformation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[t.ID]; !ok {
		return integration.ErrTransformationNotFound
	}
	r.rules[t.ID] = cloneTransformation(t)
	return nil
}

// FindByID returns a copy of the rule
func (r *TransformationRepository) FindByID(_ context.Context, id uuid.UUID) (*integration.Transformation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rules[id]
	if !ok {
		return nil, integration.ErrTransformationNotFound
	}
	out := cloneTransformation(&t)
	return &out, nil
}

// FindAll lists rules by descending priority
func (r *TransformationRepository) FindAll(_ context.Context, filter integration.TransformationFilter) ([]integration.Transformation, int64, error) {
	r.mu.RLock()
	var matched []integration.Transformation
	for _, t := range r.rules {
		if filter.SourceConnector != "" && t.SourceConnector != filter.SourceConnector {
			continue
		}
		if filter.TargetConnector != "" && t.TargetConnector != filter.TargetConnector {
			continue
		}
		if filter.SourceType != "" && t.SourceType != filter.SourceType {
			continue
		}
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		matched = append(matched, cloneTransformation(&t))
	}
	r.mu.RUnlock()
	sortByPriority(matched)
	return paginate(matched, filter.Offset(), filter.PageSize), int64(len(matched)), nil
}

// FindCandidates returns active rules for the route and source type
func (r *TransformationRepository) FindCandidates(_ context.Context, sourceConnector, targetConnector, sourceType string) ([]integration.Transformation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []integration.Transformation
	for _, t := range r.rules {
		if t.IsActive && t.SourceConnector == sourceConnector &&
			t.TargetConnector == targetConnector && t.SourceType == sourceType {
			out = append(out, cloneTransformation(&t))
		}
	}
	sortByPriority(out)
	return out, nil
}

// Delete removes a rule
func (r *TransformationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return integration.ErrTransformationNotFound
	}
	delete(r.rules, id)
	return nil
}

func sortByPriority(rules []integration.Transformation) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].UpdatedAt.After(rules[j].UpdatedAt)
	})
}

func cloneTransformation(t *integration.Transformation) integration.Transformation {
	out := *t
	out.SourceToCanonical = cloneSpec(t.SourceToCanonical)
	out.CanonicalToTarget = cloneSpec(t.CanonicalToTarget)
	return out
}

func cloneSpec(s integration.MappingSpec) integration.MappingSpec {
	out := integration.MappingSpec{
		Mappings: append([]integration.FieldMapping(nil), s.Mappings...),
	}
	if s.Defaults != nil {
		out.Defaults = integration.Payload(s.Defaults).Clone()
	}
	return out
}
