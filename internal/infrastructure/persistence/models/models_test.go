package models

import (
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "connectors", ConnectorModel{}.TableName())
	assert.Equal(t, "integration_messages", MessageModel{}.TableName())
	assert.Equal(t, "transformations", TransformationModel{}.TableName())
	assert.Equal(t, "dead_letter_entries", DeadLetterModel{}.TableName())
	assert.Len(t, All(), 4)
}

func TestConnectorModel_TimeoutAndSettings(t *testing.T) {
	c, err := integration.NewConnector("erp-sap", "SAP", integration.ConnectorTypeERP,
		integration.DirectionOutbound, integration.TransportHTTP)
	require.NoError(t, err)
	c.Timeout = 2500 * time.Millisecond
	c.Settings = map[string]string{"header.X-Tenant": "acme"}

	m := ConnectorModelFromDomain(c)
	assert.Equal(t, int64(2500), m.TimeoutMs)

	back := m.ToDomain()
	assert.Equal(t, c.Timeout, back.Timeout)
	assert.Equal(t, "acme", back.Settings["header.X-Tenant"])
	assert.Equal(t, integration.CircuitClosed, back.CircuitState)
}

func TestMessageModel_StagePayloadsLoadAsNil(t *testing.T) {
	m := &MessageModel{
		SourcePayload:    nil,
		CanonicalPayload: datatypes.JSONMap{},
		TargetPayload:    datatypes.JSONMap{"externalOrderId": "A-1"},
		ErrorDetails:     datatypes.JSONMap{},
	}
	msg := m.ToDomain()

	assert.NotNil(t, msg.SourcePayload)
	assert.Nil(t, msg.CanonicalPayload)
	assert.Equal(t, "A-1", msg.TargetPayload["externalOrderId"])
	assert.Nil(t, msg.ErrorDetails)
	assert.Nil(t, msg.TransformErrors)
}

func TestTransformationModel_KeepsMappingSpecs(t *testing.T) {
	rule, err := integration.NewTransformation("orders", "shop", "erp", "ORDER_CREATED", "ORDER_RECEIVED")
	require.NoError(t, err)
	rule.SourceToCanonical = integration.MappingSpec{
		Mappings: []integration.FieldMapping{{Source: "orderId", Target: "order.id", Required: true}},
	}

	back := TransformationModelFromDomain(rule).ToDomain()
	require.Len(t, back.SourceToCanonical.Mappings, 1)
	assert.True(t, back.SourceToCanonical.Mappings[0].Required)
	assert.Empty(t, back.CanonicalToTarget.Mappings)
}
