package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectorRepository persists connectors. Mutate is the only way the
// pipeline changes rate, circuit and counter state: fn runs against the
// current row under an exclusive per-connector lock and its changes are
// stored in the same unit of work.
type ConnectorRepository interface {
	Create(ctx context.Context, c *Connector) error
	FindByCode(ctx context.Context, code string) (*Connector, error)
	FindAll(ctx context.Context, filter ConnectorFilter) ([]Connector, int64, error)
	Mutate(ctx context.Context, code string, fn func(c *Connector) error) (*Connector, error)
	Delete(ctx context.Context, code string) error
}

// IdempotencyRecord is the cached fingerprint of the latest message for a key
type IdempotencyRecord struct {
	MessageID uuid.UUID `json:"message_id"`
	Hash      string    `json:"hash"`
}

// IdempotencyCache is a fast path in front of the message repository for
// idempotency lookups. A miss is not authoritative.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, bool, error)
	Put(ctx context.Context, key string, record IdempotencyRecord, ttl time.Duration) error
}
