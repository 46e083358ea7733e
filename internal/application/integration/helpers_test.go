package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockDeliveryGateway is a mock implementation of integration.DeliveryGateway
type MockDeliveryGateway struct {
	mock.Mock
}

func (m *MockDeliveryGateway) Deliver(ctx context.Context, c *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	args := m.Called(ctx, c, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.DeliveryReceipt), args.Error(1)
}

func (m *MockDeliveryGateway) Probe(ctx context.Context, c *integration.Connector) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type testHub struct {
	*Hub
	settings        Settings
	clock           *fakeClock
	gateway         *MockDeliveryGateway
	connectors      *memory.ConnectorRepository
	messages        *memory.MessageRepository
	transformations *memory.TransformationRepository
	deadLetters     *memory.DeadLetterRepository
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	clock := newFakeClock()
	gateway := new(MockDeliveryGateway)
	h := &testHub{
		clock:           clock,
		gateway:         gateway,
		connectors:      memory.NewConnectorRepository(),
		messages:        memory.NewMessageRepository(),
		transformations: memory.NewTransformationRepository(),
		deadLetters:     memory.NewDeadLetterRepository(),
	}
	h.settings = DefaultSettings()
	h.settings.Retry.MaxRetries = 3
	h.rewire(h.messages, h.deadLetters)
	return h
}

// rewire rebuilds the services on top of the given message and dead letter
// stores, which may wrap the in-memory ones
func (h *testHub) rewire(messages integration.MessageRepository, deadLetters integration.DeadLetterRepository) {
	h.Hub = NewHub(Dependencies{
		Connectors:      h.connectors,
		Messages:        messages,
		Transformations: h.transformations,
		DeadLetters:     deadLetters,
		Gateway:         h.gateway,
		Clock:           h.clock.Now,
	}, h.settings)
	h.RetryScheduler.SetJitterSource(func() float64 { return 0 })
}

// slowMessageRepository adds latency to idempotency lookups
type slowMessageRepository struct {
	*memory.MessageRepository
	delay time.Duration
}

func (r *slowMessageRepository) FindLatestByIdempotencyKey(ctx context.Context, key string) (*integration.IntegrationMessage, error) {
	time.Sleep(r.delay)
	return r.MessageRepository.FindLatestByIdempotencyKey(ctx, key)
}

// slowDeadLetterRepository adds latency to entry lookups
type slowDeadLetterRepository struct {
	*memory.DeadLetterRepository
	delay time.Duration
}

func (r *slowDeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	time.Sleep(r.delay)
	return r.DeadLetterRepository.FindByID(ctx, id)
}

func (h *testHub) addConnector(t *testing.T, code string, rateLimit *int) *integration.Connector {
	t.Helper()
	c, err := integration.NewConnector(code, "Connector "+code, integration.ConnectorTypeERP,
		integration.DirectionBidirectional, integration.TransportLoopback)
	require.NoError(t, err)
	c.RateLimit = rateLimit
	require.NoError(t, h.connectors.Create(context.Background(), c))
	return c
}

func (h *testHub) addOrderRule(t *testing.T, source, target string) *integration.Transformation {
	t.Helper()
	rule, err := integration.NewTransformation("orders "+source+" to "+target, source, target, "ORDER_CREATED", "ORDER_RECEIVED")
	require.NoError(t, err)
	rule.SourceToCanonical = integration.MappingSpec{Mappings: []integration.FieldMapping{
		{Source: "orderId", Target: "order.id", Required: true},
	}}
	rule.CanonicalToTarget = integration.MappingSpec{Mappings: []integration.FieldMapping{
		{Source: "order.id", Target: "externalOrderId"},
	}}
	require.NoError(t, h.transformations.Create(context.Background(), rule))
	return rule
}

func (h *testHub) connector(t *testing.T, code string) *integration.Connector {
	t.Helper()
	c, err := h.connectors.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return c
}

func orderRequest(messageID string) RouteMessageRequest {
	return RouteMessageRequest{
		MessageID:       messageID,
		SourceConnector: "ecommerce",
		TargetConnector: "erp-sap",
		Type:            "ORDER_CREATED",
		SourcePayload:   integration.Payload{"orderId": "12345"},
	}
}

func intPtr(v int) *int {
	return &v
}
