package delivery

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

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, c *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	args := m.Called(ctx, c, msg)
	r, _ := args.Get(0).(*integration.DeliveryReceipt)
	return r, args.Error(1)
}

func (m *mockTransport) Probe(ctx context.Context, c *integration.Connector) error {
	return m.Called(ctx, c).Error(0)
}

func TestDispatcher_RoutesByTransport(t *testing.T) {
	httpT := &mockTransport{}
	httpT.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.DeliveryReceipt{StatusCode: 200}, nil)

	ticks := []time.Time{baseTime, baseTime.Add(40 * time.Millisecond)}
	d := NewDispatcher(
		WithTransport(integration.TransportHTTP, httpT),
		WithDispatcherClock(func() time.Time {
			now := ticks[0]
			ticks = ticks[1:]
			return now
		}),
	)

	receipt, err := d.Deliver(context.Background(), newConnector(t, integration.TransportHTTP, "http://x"), newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, 200, receipt.StatusCode)
	assert.Equal(t, 40*time.Millisecond, receipt.Duration)
	httpT.AssertExpectations(t)
}

func TestDispatcher_LoopbackIsBuiltIn(t *testing.T) {
	loop := NewLoopbackTransport()
	d := NewDispatcher(WithTransport(integration.TransportLoopback, loop))
	c := newConnector(t, integration.TransportLoopback, "")

	receipt, err := d.Deliver(context.Background(), c, newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, "loopback:order-12345", receipt.Reference)
	require.Len(t, loop.Delivered(), 1)
	assert.NoError(t, d.Probe(context.Background(), c))

	loop.Reset()
	assert.Empty(t, loop.Delivered())

	_, err = NewDispatcher().Deliver(context.Background(), c, newMessage(t))
	assert.NoError(t, err)
}

func TestDispatcher_UnconfiguredTransportIsPermanent(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Deliver(context.Background(), newConnector(t, integration.TransportKafka, "topic"), newMessage(t))
	require.Error(t, err)
	assert.False(t, integration.IsRetryableDeliveryError(err))
	assert.Error(t, d.Probe(context.Background(), newConnector(t, integration.TransportS3, "bucket")))
}

func TestDispatcher_PropagatesTransportErrors(t *testing.T) {
	failing := &mockTransport{}
	rejected := integration.NewPermanentDeliveryError(422, errors.New("invalid order"))
	failing.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil, rejected)
	failing.On("Probe", mock.Anything, mock.Anything).Return(errors.New("down"))

	d := NewDispatcher(WithTransport(integration.TransportHTTP, failing))
	c := newConnector(t, integration.TransportHTTP, "http://x")
	_, err := d.Deliver(context.Background(), c, newMessage(t))
	assert.ErrorIs(t, err, rejected)
	assert.EqualError(t, d.Probe(context.Background(), c), "down")
}

func TestLoopbackTransport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoopbackTransport().Send(ctx, nil, newMessage(t))
	assert.True(t, integration.IsRetryableDeliveryError(err))
}
