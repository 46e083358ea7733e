package delivery

import (
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newConnector(t *testing.T, transport integration.Transport, endpoint string) *integration.Connector {
	t.Helper()
	c, err := integration.NewConnector("erp-sap", "SAP", integration.ConnectorTypeERP,
		integration.DirectionOutbound, transport)
	require.NoError(t, err)
	c.Endpoint = endpoint
	return c
}

func newMessage(t *testing.T) *integration.IntegrationMessage {
	t.Helper()
	m, err := integration.NewIntegrationMessage(integration.NewMessageParams{
		MessageID:       "order-12345",
		SourceConnector: "ecommerce",
		TargetConnector: "erp-sap",
		Type:            "ORDER_CREATED",
		SourcePayload:   integration.Payload{"orderId": "12345"},
		IdempotencyKey:  "idem-1",
		MaxRetries:      3,
	}, baseTime)
	require.NoError(t, err)
	m.TargetType = "SALES_ORDER"
	m.TargetPayload = integration.Payload{"VBELN": "12345"}
	return m
}
