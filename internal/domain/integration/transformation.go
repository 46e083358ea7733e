package integration

import (
	"context"
	"strings"

	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Transformation Entity
// ---------------------------------------------------------------------------

// Transformation maps payloads from a source connector to a target connector
// through a connector-neutral canonical shape.
type Transformation struct {
	shared.BaseEntity

	Name            string
	Description     string
	SourceConnector string
	TargetConnector string
	SourceType      string
	TargetType      string
	IsActive        bool
	// Priority picks the rule when several match; higher wins
	Priority          int
	SourceToCanonical MappingSpec
	CanonicalToTarget MappingSpec
}

// NewTransformation creates an active transformation rule
func NewTransformation(name, sourceConnector, targetConnector, sourceType, targetType string) (*Transformation, error) {
	t := &Transformation{
		BaseEntity:      shared.NewBaseEntity(),
		Name:            name,
		SourceConnector: sourceConnector,
		TargetConnector: targetConnector,
		SourceType:      sourceType,
		TargetType:      targetType,
		IsActive:        true,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate validates the transformation rule
func (t *Transformation) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrInvalidTransformation.WithMessage("Transformation name is required")
	}
	if t.SourceConnector == "" || t.TargetConnector == "" {
		return ErrInvalidTransformation.WithMessage("Source and target connectors are required")
	}
	if t.SourceType == "" || t.TargetType == "" {
		return ErrInvalidTransformation.WithMessage("Source and target message types are required")
	}
	if err := t.SourceToCanonical.Validate(); err != nil {
		return err
	}
	return t.CanonicalToTarget.Validate()
}

// Apply runs both mapping stages over payload
func (t *Transformation) Apply(payload Payload) TransformResult {
	canonical, errs := t.SourceToCanonical.Apply(payload)
	if len(errs) > 0 {
		return TransformResult{
			Outcome:          TransformMappingFailed,
			TransformationID: t.ID,
			CanonicalPayload: canonical,
			TargetType:       t.TargetType,
			Errors:           prefixErrors("source to canonical", errs),
		}
	}

	target, errs := t.CanonicalToTarget.Apply(canonical)
	if len(errs) > 0 {
		return TransformResult{
			Outcome:          TransformMappingFailed,
			TransformationID: t.ID,
			CanonicalPayload: canonical,
			TargetPayload:    target,
			TargetType:       t.TargetType,
			Errors:           prefixErrors("canonical to target", errs),
		}
	}

	return TransformResult{
		Outcome:          TransformSucceeded,
		TransformationID: t.ID,
		CanonicalPayload: canonical,
		TargetPayload:    target,
		TargetType:       t.TargetType,
	}
}

// SelectTransformation picks the best active rule: highest priority first,
// then the most recently updated.
func SelectTransformation(candidates []Transformation) *Transformation {
	var best *Transformation
	for i := range candidates {
		c := &candidates[i]
		if !c.IsActive {
			continue
		}
		if best == nil ||
			c.Priority > best.Priority ||
			(c.Priority == best.Priority && c.UpdatedAt.After(best.UpdatedAt)) {
			best = c
		}
	}
	return best
}

func prefixErrors(stage string, errs []string) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = stage + ": " + e
	}
	return out
}

// ---------------------------------------------------------------------------
// Transform results
// ---------------------------------------------------------------------------

// TransformOutcome distinguishes the results of a transformation attempt
type TransformOutcome string

const (
	TransformSucceeded     TransformOutcome = "SUCCEEDED"
	TransformNoRule        TransformOutcome = "NO_TRANSFORMATION"
	TransformMappingFailed TransformOutcome = "MAPPING_FAILED"
)

// TransformResult is the outcome of transforming one payload
type TransformResult struct {
	Outcome          TransformOutcome
	TransformationID uuid.UUID
	CanonicalPayload Payload
	TargetPayload    Payload
	TargetType       string
	Errors           []string
}

// Success reports whether both mapping stages succeeded
func (r TransformResult) Success() bool {
	return r.Outcome == TransformSucceeded
}

// NoTransformationResult is returned when no active rule matches
func NoTransformationResult(sourceConnector, targetConnector, messageType string) TransformResult {
	return TransformResult{
		Outcome: TransformNoRule,
		Errors: []string{
			"no transformation found for " + sourceConnector + " -> " + targetConnector + " (" + messageType + ")",
		},
	}
}

// TransformationFilter filters transformation listings
type TransformationFilter struct {
	shared.Filter
	SourceConnector string
	TargetConnector string
	SourceType      string
	IsActive        *bool
}

// TransformationRepository persists transformation rules
type TransformationRepository interface {
	Create(ctx context.Context, t *Transformation) error
	Save(ctx context.Context, t *Transformation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transformation, error)
	FindAll(ctx context.Context, filter TransformationFilter) ([]Transformation, int64, error)
	// FindCandidates returns active rules for the route and source type
	FindCandidates(ctx context.Context, sourceConnector, targetConnector, sourceType string) ([]Transformation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
