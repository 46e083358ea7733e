package delivery

import (
	"context"
	"sync"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// LoopbackTransport accepts every message without I/O. Delivered messages are
// kept for inspection until Reset.
type LoopbackTransport struct {
	mu        sync.Mutex
	delivered []integration.IntegrationMessage
}

// NewLoopbackTransport creates a loopback transport
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{}
}

// Send records msg and succeeds
func (t *LoopbackTransport) Send(ctx context.Context, _ *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, integration.NewRetryableDeliveryError(0, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, *msg)
	return &integration.DeliveryReceipt{Reference: "loopback:" + msg.MessageID}, nil
}

// Probe always succeeds
func (t *LoopbackTransport) Probe(context.Context, *integration.Connector) error {
	return nil
}

// Delivered returns copies of the messages sent so far
func (t *LoopbackTransport) Delivered() []integration.IntegrationMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]integration.IntegrationMessage, len(t.delivered))
	copy(out, t.delivered)
	return out
}

// Reset forgets every recorded message
func (t *LoopbackTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = nil
}
