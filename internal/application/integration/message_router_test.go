package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRouteMessage_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", intPtr(100))
	h.addConnector(t, "ecommerce", nil)
	rule := h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{StatusCode: 200}, nil).Once()

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)

	assert.Equal(t, integration.MessageStatusCompleted, msg.Status)
	assert.NotNil(t, msg.CompletedAt)
	assert.Equal(t, "12345", msg.TargetPayload["externalOrderId"])
	assert.Equal(t, "ORDER_RECEIVED", msg.TargetType)
	require.NotNil(t, msg.TransformationID)
	assert.Equal(t, rule.ID, *msg.TransformationID)
	assert.NotEmpty(t, msg.ProcessedHash)

	c := h.connector(t, "erp-sap")
	assert.Equal(t, int64(1), c.SuccessfulMessages)
	assert.Equal(t, int64(1), c.TotalMessages)
	assert.Equal(t, 1, c.CurrentCount)
	assert.Equal(t, integration.CircuitClosed, c.CircuitState)

	stored, err := h.messages.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusCompleted, stored.Status)
	h.gateway.AssertExpectations(t)
}

func TestRouteMessage_Duplicate(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	first, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)

	second, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, DuplicateNotice, second.Notice)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, integration.MessageStatusCompleted, second.Status)
	h.gateway.AssertNumberOfCalls(t, "Deliver", 1)

	changed := orderRequest("ord-1")
	changed.SourcePayload = integration.Payload{"orderId": "99999"}
	third, err := h.Router.RouteMessage(ctx, changed)
	require.NoError(t, err)
	assert.False(t, third.IsDuplicate)
	assert.NotEqual(t, first.ID, third.ID)
	h.gateway.AssertNumberOfCalls(t, "Deliver", 2)

	assert.Equal(t, int64(2), h.connector(t, "erp-sap").TotalMessages)
}

func TestRouteMessage_ConnectorNotRoutable(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	assert.ErrorIs(t, err, integration.ErrConnectorNotFound)
	require.NotNil(t, msg)
	assert.Equal(t, integration.MessageStatusFailed, msg.Status)
	_, err = h.messages.FindByID(ctx, msg.ID)
	assert.NoError(t, err)

	c := h.addConnector(t, "erp-sap", nil)
	_, err = h.connectors.Mutate(ctx, c.Code, func(c *integration.Connector) error {
		c.IsActive = false
		return nil
	})
	require.NoError(t, err)

	msg, err = h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	assert.ErrorIs(t, err, integration.ErrConnectorInactive)
	assert.Equal(t, integration.MessageStatusFailed, msg.Status)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouteMessage_InvalidRequest(t *testing.T) {
	h := newTestHub(t)
	req := orderRequest("")
	_, err := h.Router.RouteMessage(context.Background(), req)
	assert.ErrorIs(t, err, integration.ErrInvalidMessage)
}

func TestRouteMessage_RateLimited(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", intPtr(1))
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	_, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)

	limited, err := h.Router.RouteMessage(ctx, orderRequest("ord-2"))
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusRetrying, limited.Status)
	assert.Equal(t, 1, limited.RetryCount)
	require.NotNil(t, limited.NextRetryAt)
	assert.Equal(t, h.clock.Now().Add(time.Second), *limited.NextRetryAt)
	assert.Equal(t, "rate limit exceeded", limited.LastError)
	h.gateway.AssertNumberOfCalls(t, "Deliver", 1)

	// the next window admits the retry
	h.clock.Advance(time.Minute)
	claimed, err := h.Router.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	done, err := h.Router.ProcessMessage(ctx, &claimed[0])
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusCompleted, done.Status)
}

func TestRouteMessage_RetryableDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, integration.NewRetryableDeliveryError(503, errors.New("service unavailable")))

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusRetrying, msg.Status)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Contains(t, msg.LastError, "503")
	assert.NotNil(t, msg.NextRetryAt)

	c := h.connector(t, "erp-sap")
	assert.Equal(t, 1, c.FailureCount)
	assert.NotNil(t, c.LastFailureAt)
	assert.Equal(t, int64(0), c.SuccessfulMessages)
}

func TestRouteMessage_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded)

	req := orderRequest("ord-1")
	req.MaxRetries = intPtr(1)
	msg, err := h.Router.RouteMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusRetrying, msg.Status)

	h.clock.Advance(2 * time.Second)
	claimed, err := h.Router.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	final, err := h.Router.ProcessMessage(ctx, &claimed[0])
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusDeadLetter, final.Status)
	assert.NotNil(t, final.FailedAt)

	entry, err := h.deadLetters.FindOpenByMessageID(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.ReasonMaxRetriesExceeded, entry.Reason)
	assert.True(t, entry.Retryable)
	assert.Equal(t, int64(1), h.connector(t, "erp-sap").FailedMessages)
}

func TestRouteMessage_PermanentDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, integration.NewPermanentDeliveryError(422, errors.New("unknown customer")))

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusDeadLetter, msg.Status)
	assert.Equal(t, string(integration.ReasonDeliveryRejected), msg.ErrorDetails["reason"])

	entry, err := h.deadLetters.FindOpenByMessageID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.ReasonDeliveryRejected, entry.Reason)
	assert.False(t, entry.Retryable)

	c := h.connector(t, "erp-sap")
	assert.Equal(t, 1, c.FailureCount)
	assert.Equal(t, int64(1), c.FailedMessages)
}

func TestRouteMessage_MissingTransformation(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusDeadLetter, msg.Status)
	assert.Contains(t, msg.LastError, "no transformation found")

	entry, err := h.deadLetters.FindOpenByMessageID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.ReasonTransformationFailed, entry.Reason)
	assert.False(t, entry.Retryable)
	assert.Equal(t, "12345", entry.Payload["orderId"])

	assert.Equal(t, 0, h.connector(t, "erp-sap").FailureCount)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouteMessage_MappingFailure(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")

	req := orderRequest("ord-1")
	req.SourcePayload = integration.Payload{"other": "x"}
	msg, err := h.Router.RouteMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusDeadLetter, msg.Status)
	require.NotEmpty(t, msg.TransformErrors)
	assert.Contains(t, msg.TransformErrors[0], "source to canonical")
}

func TestRouteMessage_CircuitOpenDefersWithoutConsumingRetry(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	openedAt := h.clock.Now()
	_, err := h.connectors.Mutate(ctx, "erp-sap", func(c *integration.Connector) error {
		c.CircuitState = integration.CircuitOpen
		c.CircuitOpenedAt = &openedAt
		c.FailureCount = 5
		return nil
	})
	require.NoError(t, err)

	h.clock.Advance(5 * time.Second)
	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusRetrying, msg.Status)
	assert.Equal(t, 0, msg.RetryCount)
	require.NotNil(t, msg.NextRetryAt)
	assert.Equal(t, openedAt.Add(30*time.Second), *msg.NextRetryAt)
	assert.Equal(t, 6, h.connector(t, "erp-sap").FailureCount)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)

	// trial delivery once the cooldown is over
	h.clock.Advance(30 * time.Second)
	claimed, err := h.Router.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	done, err := h.Router.ProcessMessage(ctx, &claimed[0])
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusCompleted, done.Status)

	c := h.connector(t, "erp-sap")
	assert.Equal(t, integration.CircuitHalfOpen, c.CircuitState)
	assert.Equal(t, 1, c.SuccessCount)
}

func TestRouteMessage_CircuitOpenTooLong(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")

	openCircuit := func() {
		now := h.clock.Now()
		_, err := h.connectors.Mutate(ctx, "erp-sap", func(c *integration.Connector) error {
			c.CircuitState = integration.CircuitOpen
			c.CircuitOpenedAt = &now
			return nil
		})
		require.NoError(t, err)
	}

	openCircuit()
	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	require.Equal(t, integration.MessageStatusRetrying, msg.Status)

	h.clock.Advance(25 * time.Hour)
	openCircuit()
	claimed, err := h.Router.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	final, err := h.Router.ProcessMessage(ctx, &claimed[0])
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusDeadLetter, final.Status)

	entry, err := h.deadLetters.FindOpenByMessageID(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.ReasonCircuitOpen, entry.Reason)
}

func TestReprocessMessage(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	require.Equal(t, integration.MessageStatusDeadLetter, msg.Status)

	// fix the configuration, then reprocess through the dead letter entry
	h.addOrderRule(t, "ecommerce", "erp-sap")
	done, err := h.Router.ReprocessMessage(ctx, msg.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusCompleted, done.Status)
	assert.Equal(t, 0, done.RetryCount)

	entries, _, err := h.deadLetters.FindAll(ctx, integration.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].ReprocessedAt)
	assert.Equal(t, "admin-1", entries[0].ReprocessedBy)

	_, err = h.Router.ReprocessMessage(ctx, msg.ID, "admin-1")
	assert.ErrorIs(t, err, integration.ErrMessageAlreadyCompleted)
}

func TestReprocessMessage_Retrying(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, integration.NewRetryableDeliveryError(500, errors.New("boom"))).Once()
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
	require.NoError(t, err)
	require.Equal(t, integration.MessageStatusRetrying, msg.Status)

	done, err := h.Router.ReprocessMessage(ctx, msg.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, integration.MessageStatusCompleted, done.Status)
	assert.Equal(t, 0, done.RetryCount)

	_, err = h.Router.ReprocessMessage(ctx, msg.ID, "admin-1")
	assert.ErrorIs(t, err, integration.ErrMessageAlreadyCompleted)
}

func TestRouteMessage_ConcurrentCountersAreConsistent(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", intPtr(1000))
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := h.Router.RouteMessage(ctx, orderRequest(fmt.Sprintf("ord-%d", i)))
			assert.NoError(t, err)
			assert.Equal(t, integration.MessageStatusCompleted, msg.Status)
		}(i)
	}
	wg.Wait()

	c := h.connector(t, "erp-sap")
	assert.Equal(t, n, c.CurrentCount)
	assert.Equal(t, int64(n), c.TotalMessages)
	assert.Equal(t, int64(n), c.SuccessfulMessages)
}

func TestRouteMessage_ConcurrentIdenticalSubmissionsDeliverOnce(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.rewire(&slowMessageRepository{MessageRepository: h.messages, delay: 5 * time.Millisecond}, h.deadLetters)
	h.addConnector(t, "erp-sap", nil)
	h.addOrderRule(t, "ecommerce", "erp-sap")
	h.gateway.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{}, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*integration.IntegrationMessage, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := h.Router.RouteMessage(ctx, orderRequest("ord-1"))
			assert.NoError(t, err)
			results[i] = msg
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, msg := range results {
		require.NotNil(t, msg)
		if !msg.IsDuplicate {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
	h.gateway.AssertNumberOfCalls(t, "Deliver", 1)
	assert.Equal(t, int64(1), h.connector(t, "erp-sap").TotalMessages)
	assert.Empty(t, h.Checker.locks)
}

func TestRequeueStale(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	h.addConnector(t, "erp-sap", nil)

	msg, err := integration.NewIntegrationMessage(integration.NewMessageParams{
		MessageID: "stuck", SourceConnector: "ecommerce", TargetConnector: "erp-sap", Type: "ORDER_CREATED", MaxRetries: 3,
	}, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, msg.BeginAttempt(h.clock.Now()))
	require.NoError(t, h.messages.Create(ctx, msg))

	n, err := h.Router.RequeueStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	h.clock.Advance(11 * time.Minute)
	n, err = h.Router.RequeueStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
