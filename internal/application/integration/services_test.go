package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConnectorService_CRUD(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	created, err := h.Connectors.Create(ctx, CreateConnectorRequest{
		Code:           "shopify",
		Name:           "Shopify",
		Type:           "ECOMMERCE",
		Endpoint:       "https://shop.example.com/hooks",
		SigningSecret:  "s3cret",
		TimeoutSeconds: 10,
		RateLimit:      intPtr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, "HTTP", created.Transport)
	assert.Equal(t, "BIDIRECTIONAL", created.Direction)
	assert.True(t, created.Signed)
	assert.Equal(t, 10, created.TimeoutSeconds)
	assert.Equal(t, integration.DefaultFailureThreshold, created.FailureThreshold)
	assert.Equal(t, "CLOSED", created.CircuitState)

	_, err = h.Connectors.Create(ctx, CreateConnectorRequest{Code: "shopify", Name: "x", Type: "ERP", Transport: "LOOPBACK"})
	assert.ErrorIs(t, err, integration.ErrConnectorAlreadyExists)

	_, err = h.Connectors.Create(ctx, CreateConnectorRequest{Code: "no-endpoint", Name: "x", Type: "ERP"})
	assert.ErrorIs(t, err, integration.ErrInvalidConnector)

	name := "Shopify EU"
	inactive := false
	updated, err := h.Connectors.Update(ctx, "shopify", UpdateConnectorRequest{
		Name:           &name,
		IsActive:       &inactive,
		ClearRateLimit: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Shopify EU", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.RateLimit)

	bad := 0
	_, err = h.Connectors.Update(ctx, "shopify", UpdateConnectorRequest{FailureThreshold: &bad})
	assert.ErrorIs(t, err, integration.ErrInvalidConnector)

	list, total, err := h.Connectors.List(ctx, integration.ConnectorFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	require.NoError(t, h.Connectors.Delete(ctx, "shopify"))
	_, err = h.Connectors.GetByCode(ctx, "shopify")
	assert.ErrorIs(t, err, integration.ErrConnectorNotFound)
}

func TestConnectorService_Health(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addConnector(t, "ecommerce", nil)
	_, err := h.connectors.Mutate(ctx, "erp-sap", func(c *integration.Connector) error {
		c.TotalMessages = 3
		c.SuccessfulMessages = 2
		return nil
	})
	require.NoError(t, err)

	all, err := h.Connectors.ListHealth(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := h.Connectors.GetHealth(ctx, "erp-sap")
	require.NoError(t, err)
	assert.Equal(t, "66.67", one.SuccessRate.String())
	assert.Equal(t, "CLOSED", one.CircuitState)

	h.gateway.On("Probe", mock.Anything, mock.MatchedBy(func(c *integration.Connector) bool { return c.Code == "erp-sap" })).
		Return(errors.New("connection refused")).Once()
	h.gateway.On("Probe", mock.Anything, mock.Anything).Return(nil)

	checked, err := h.Connectors.CheckHealth(ctx, "erp-sap")
	require.NoError(t, err)
	assert.Equal(t, "UNHEALTHY", checked.Status)
	assert.Equal(t, "connection refused", checked.LastHealthError)
	assert.NotNil(t, checked.LastHealthCheck)

	checked, err = h.Connectors.CheckHealth(ctx, "erp-sap")
	require.NoError(t, err)
	assert.Equal(t, "HEALTHY", checked.Status)
}

func TestConnectorService_AdminResets(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", intPtr(10))
	for i := 0; i < 5; i++ {
		_, err := h.CircuitBreaker.RecordFailure(ctx, "erp-sap")
		require.NoError(t, err)
	}
	_, err := h.RateLimiter.CheckRateLimit(ctx, "erp-sap")
	require.NoError(t, err)

	reset, err := h.Connectors.ResetCircuit(ctx, "erp-sap")
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", reset.CircuitState)
	assert.Equal(t, 0, reset.FailureCount)

	rl, err := h.Connectors.ResetRateLimit(ctx, "erp-sap")
	require.NoError(t, err)
	assert.Equal(t, 1, rl.CurrentCount)
	assert.Equal(t, 1, h.connector(t, "erp-sap").CurrentCount)

	_, err = h.Connectors.ResetCircuit(ctx, "missing")
	assert.ErrorIs(t, err, integration.ErrConnectorNotFound)
}

func TestTransformationService(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	created, err := h.Transformations.Create(ctx, CreateTransformationRequest{
		Name:            "orders",
		SourceConnector: "ecommerce",
		TargetConnector: "erp-sap",
		SourceType:      "ORDER_CREATED",
		TargetType:      "ORDER_RECEIVED",
		SourceToCanonical: integration.MappingSpec{Mappings: []integration.FieldMapping{
			{Source: "orderId", Target: "order.id"},
		}},
		CanonicalToTarget: integration.MappingSpec{Mappings: []integration.FieldMapping{
			{Source: "order.id", Target: "externalOrderId"},
		}, Defaults: map[string]any{"channel": "web"}},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	result, err := h.Engine.TransformPayload(ctx, "ecommerce", "erp-sap", "ORDER_CREATED", "ORDER_RECEIVED",
		integration.Payload{"orderId": "12345"})
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "12345", result.TargetPayload["externalOrderId"])
	assert.Equal(t, "web", result.TargetPayload["channel"])

	result, err = h.Engine.TransformPayload(ctx, "ecommerce", "erp-sap", "ORDER_CREATED", "INVOICE", integration.Payload{})
	require.NoError(t, err)
	assert.Equal(t, integration.TransformNoRule, result.Outcome)

	h.clock.Advance(time.Minute)
	priority := 10
	disabled := false
	updated, err := h.Transformations.Update(ctx, created.ID, UpdateTransformationRequest{Priority: &priority, IsActive: &disabled})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Priority)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	result, err = h.Engine.TransformPayload(ctx, "ecommerce", "erp-sap", "ORDER_CREATED", "", integration.Payload{"orderId": "1"})
	require.NoError(t, err)
	assert.Equal(t, integration.TransformNoRule, result.Outcome)
	assert.Contains(t, result.Errors[0], "no transformation found")

	_, err = h.Transformations.Create(ctx, CreateTransformationRequest{
		Name: "bad", SourceConnector: "a", TargetConnector: "b", SourceType: "X", TargetType: "Y",
		SourceToCanonical: integration.MappingSpec{Mappings: []integration.FieldMapping{{Source: "", Target: "x"}}},
	})
	assert.Error(t, err)

	require.NoError(t, h.Transformations.Delete(ctx, created.ID))
	_, err = h.Transformations.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, integration.ErrTransformationNotFound)
}

func TestTransformationEngine_PicksHighestPriority(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	low := h.addOrderRule(t, "ecommerce", "erp-sap")
	high := h.addOrderRule(t, "ecommerce", "erp-sap")
	high.Priority = 5
	high.CanonicalToTarget = integration.MappingSpec{Mappings: []integration.FieldMapping{
		{Source: "order.id", Target: "ref", Transform: integration.ValueTransformString},
	}}
	require.NoError(t, h.transformations.Save(ctx, high))

	msg, err := integration.NewIntegrationMessage(integration.NewMessageParams{
		MessageID: "m-1", SourceConnector: "ecommerce", TargetConnector: "erp-sap", Type: "ORDER_CREATED",
		SourcePayload: integration.Payload{"orderId": "12345"},
	}, h.clock.Now())
	require.NoError(t, err)

	result, err := h.Engine.TransformMessage(ctx, msg)
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, high.ID, result.TransformationID)
	assert.NotEqual(t, low.ID, result.TransformationID)
	assert.Equal(t, "12345", result.TargetPayload["ref"])
}
