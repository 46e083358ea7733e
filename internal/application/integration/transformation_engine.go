package integration

import (
	"context"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// TransformationEngine selects and applies transformation rules
type TransformationEngine struct {
	rules integration.TransformationRepository
}

// NewTransformationEngine creates a transformation engine
func NewTransformationEngine(rules integration.TransformationRepository) *TransformationEngine {
	return &TransformationEngine{rules: rules}
}

// TransformMessage applies the best matching rule for the message route and type.
// A missing rule is reported as an outcome, not an error.
func (e *TransformationEngine) TransformMessage(ctx context.Context, msg *integration.IntegrationMessage) (integration.TransformResult, error) {
	return e.TransformPayload(ctx, msg.SourceConnector, msg.TargetConnector, msg.Type, "", msg.SourcePayload)
}

// TransformPayload transforms payload without a persisted message. An empty
// targetType accepts any rule target type.
func (e *TransformationEngine) TransformPayload(
	ctx context.Context,
	sourceConnector, targetConnector, sourceType, targetType string,
	payload integration.Payload,
) (integration.TransformResult, error) {
	candidates, err := e.rules.FindCandidates(ctx, sourceConnector, targetConnector, sourceType)
	if err != nil {
		return integration.TransformResult{}, err
	}
	if targetType != "" {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.TargetType == targetType {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	rule := integration.SelectTransformation(candidates)
	if rule == nil {
		return integration.NoTransformationResult(sourceConnector, targetConnector, sourceType), nil
	}
	if payload == nil {
		payload = integration.Payload{}
	}
	return rule.Apply(payload), nil
}
