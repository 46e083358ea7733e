package integration

import (
	"context"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransformationService manages transformation rules
type TransformationService struct {
	rules  integration.TransformationRepository
	clock  Clock
	logger *zap.Logger
}

// NewTransformationService creates a transformation service
func NewTransformationService(rules integration.TransformationRepository, clock Clock, logger *zap.Logger) *TransformationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransformationService{rules: rules, clock: clock, logger: logger}
}

// Create creates a transformation rule
func (s *TransformationService) Create(ctx context.Context, req CreateTransformationRequest) (*TransformationResponse, error) {
	t, err := integration.NewTransformation(req.Name, req.SourceConnector, req.TargetConnector, req.SourceType, req.TargetType)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Description = req.Description
	t.Priority = req.Priority
	t.SourceToCanonical = req.SourceToCanonical
	t.CanonicalToTarget = req.CanonicalToTarget
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("Transformation created",
		zap.String("transformation_id", t.ID.String()),
		zap.String("source", t.SourceConnector),
		zap.String("target", t.TargetConnector),
		zap.String("source_type", t.SourceType),
	)
	return ToTransformationResponse(t), nil
}

// Update applies the non-nil fields of req
func (s *TransformationService) Update(ctx context.Context, id uuid.UUID, req UpdateTransformationRequest) (*TransformationResponse, error) {
	t, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.TargetType != nil {
		t.TargetType = *req.TargetType
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if req.SourceToCanonical != nil {
		t.SourceToCanonical = *req.SourceToCanonical
	}
	if req.CanonicalToTarget != nil {
		t.CanonicalToTarget = *req.CanonicalToTarget
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Touch(s.clock.now())
	if err := s.rules.Save(ctx, t); err != nil {
		return nil, err
	}
	return ToTransformationResponse(t), nil
}

// GetByID returns a transformation rule
func (s *TransformationService) GetByID(ctx context.Context, id uuid.UUID) (*TransformationResponse, error) {
	t, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTransformationResponse(t), nil
}

// List lists transformation rules
func (s *TransformationService) List(ctx context.Context, filter integration.TransformationFilter) ([]TransformationResponse, int64, error) {
	filter.Normalize()
	rules, total, err := s.rules.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TransformationResponse, len(rules))
	for i := range rules {
		out[i] = *ToTransformationResponse(&rules[i])
	}
	return out, total, nil
}

// Delete removes a transformation rule
func (s *TransformationService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Transformation deleted", zap.String("transformation_id", id.String()))
	return nil
}
