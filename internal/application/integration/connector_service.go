package integration

import (
	"context"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/domain/shared"
	"go.uber.org/zap"
)

// ConnectorService manages the connector registry
type ConnectorService struct {
	connectors integration.ConnectorRepository
	breaker    *CircuitBreaker
	gateway    integration.DeliveryGateway
	settings   Settings
	clock      Clock
	logger     *zap.Logger
}

// NewConnectorService creates a connector service
func NewConnectorService(
	connectors integration.ConnectorRepository,
	breaker *CircuitBreaker,
	gateway integration.DeliveryGateway,
	settings Settings,
	clock Clock,
	logger *zap.Logger,
) *ConnectorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorService{
		connectors: connectors,
		breaker:    breaker,
		gateway:    gateway,
		settings:   settings,
		clock:      clock,
		logger:     logger,
	}
}

// Create registers a connector
func (s *ConnectorService) Create(ctx context.Context, req CreateConnectorRequest) (*ConnectorResponse, error) {
	direction := integration.Direction(req.Direction)
	if direction == "" {
		direction = integration.DirectionBidirectional
	}
	transport := integration.Transport(req.Transport)
	if transport == "" {
		transport = integration.TransportHTTP
	}

	c := &integration.Connector{}
	c.BaseEntity = shared.NewBaseEntityAt(s.clock.now())
	c.Code = req.Code
	c.Name = req.Name
	c.Type = integration.ConnectorType(req.Type)
	c.Direction = direction
	c.IsActive = true
	c.Transport = transport
	c.Endpoint = req.Endpoint
	c.Settings = req.Settings
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	c.SigningSecret = req.SigningSecret
	c.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	c.RateLimit = req.RateLimit
	c.RateLimitWindowSeconds = orDefault(req.RateLimitWindowSeconds, integration.DefaultRateLimitWindowSeconds)
	c.CircuitState = integration.CircuitClosed
	c.FailureThreshold = orDefault(req.FailureThreshold, orDefault(s.settings.FailureThreshold, integration.DefaultFailureThreshold))
	c.SuccessThreshold = orDefault(req.SuccessThreshold, orDefault(s.settings.SuccessThreshold, integration.DefaultSuccessThreshold))
	c.HealthStatus = integration.HealthStatusUnknown
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.connectors.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Connector registered",
		zap.String("connector", c.Code),
		zap.String("type", string(c.Type)),
		zap.String("transport", string(c.Transport)),
	)
	return ToConnectorResponse(c), nil
}

// Update applies the non-nil fields of req. Pipeline counters are untouched.
func (s *ConnectorService) Update(ctx context.Context, code string, req UpdateConnectorRequest) (*ConnectorResponse, error) {
	updated, err := s.connectors.Mutate(ctx, code, func(c *integration.Connector) error {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Type != nil {
			c.Type = integration.ConnectorType(*req.Type)
		}
		if req.Direction != nil {
			c.Direction = integration.Direction(*req.Direction)
		}
		if req.Transport != nil {
			c.Transport = integration.Transport(*req.Transport)
		}
		if req.Endpoint != nil {
			c.Endpoint = *req.Endpoint
		}
		if req.Settings != nil {
			c.Settings = *req.Settings
		}
		if req.SigningSecret != nil {
			c.SigningSecret = *req.SigningSecret
		}
		if req.TimeoutSeconds != nil {
			c.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		if req.ClearRateLimit {
			c.RateLimit = nil
		} else if req.RateLimit != nil {
			limit := *req.RateLimit
			c.RateLimit = &limit
		}
		if req.RateLimitWindowSeconds != nil {
			c.RateLimitWindowSeconds = *req.RateLimitWindowSeconds
		}
		if req.FailureThreshold != nil {
			c.FailureThreshold = *req.FailureThreshold
		}
		if req.SuccessThreshold != nil {
			c.SuccessThreshold = *req.SuccessThreshold
		}
		if err := c.Validate(); err != nil {
			return err
		}
		c.Touch(s.clock.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ToConnectorResponse(updated), nil
}

// GetByCode returns one connector
func (s *ConnectorService) GetByCode(ctx context.Context, code string) (*ConnectorResponse, error) {
	c, err := s.connectors.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return ToConnectorResponse(c), nil
}

// List lists connectors
func (s *ConnectorService) List(ctx context.Context, filter integration.ConnectorFilter) ([]ConnectorResponse, int64, error) {
	filter.Normalize()
	connectors, total, err := s.connectors.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ConnectorResponse, len(connectors))
	for i := range connectors {
		out[i] = *ToConnectorResponse(&connectors[i])
	}
	return out, total, nil
}

// Delete removes a connector
func (s *ConnectorService) Delete(ctx context.Context, code string) error {
	if err := s.connectors.Delete(ctx, code); err != nil {
		return err
	}
	s.logger.Info("Connector deleted", zap.String("connector", code))
	return nil
}

// ListHealth returns the health snapshot of every connector
func (s *ConnectorService) ListHealth(ctx context.Context) ([]HealthResponse, error) {
	filter := integration.ConnectorFilter{}
	filter.Page = 1
	filter.PageSize = 0
	connectors, _, err := s.connectors.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]HealthResponse, len(connectors))
	for i := range connectors {
		out[i] = *ToHealthResponse(connectors[i].Snapshot())
	}
	return out, nil
}

// GetHealth returns the health snapshot of one connector. An OPEN circuit
// whose cooldown elapsed is reported as HALF_OPEN.
func (s *ConnectorService) GetHealth(ctx context.Context, code string) (*HealthResponse, error) {
	if _, err := s.breaker.GetCircuitState(ctx, code); err != nil {
		return nil, err
	}
	c, err := s.connectors.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return ToHealthResponse(c.Snapshot()), nil
}

// CheckHealth probes the connector endpoint and records the result
func (s *ConnectorService) CheckHealth(ctx context.Context, code string) (*HealthResponse, error) {
	c, err := s.connectors.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = s.settings.DeliveryTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	probeErr := s.gateway.Probe(probeCtx, c)
	cancel()

	updated, err := s.connectors.Mutate(ctx, code, func(c *integration.Connector) error {
		c.RecordHealthProbe(probeErr, s.clock.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if probeErr != nil {
		s.logger.Warn("Connector health probe failed",
			zap.String("connector", code),
			zap.Error(probeErr),
		)
	}
	return ToHealthResponse(updated.Snapshot()), nil
}

// ResetCircuit forces the connector's circuit CLOSED
func (s *ConnectorService) ResetCircuit(ctx context.Context, code string) (*ConnectorResponse, error) {
	c, err := s.breaker.Reset(ctx, code)
	if err != nil {
		return nil, err
	}
	return ToConnectorResponse(c), nil
}

// ResetRateLimit reports the rate limit state without changing it. The fixed
// window resets itself once it elapses.
func (s *ConnectorService) ResetRateLimit(ctx context.Context, code string) (*RateLimitResponse, error) {
	c, err := s.connectors.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &RateLimitResponse{
		Code:          c.Code,
		RateLimit:     c.RateLimit,
		WindowSeconds: c.RateLimitWindowSeconds,
		CurrentCount:  c.CurrentCount,
		WindowStart:   c.WindowStart,
		Note:          "Rate limit windows reset automatically",
	}, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
