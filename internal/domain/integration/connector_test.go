package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	c, err := NewConnector("erp-sap", "SAP ERP", ConnectorTypeERP, DirectionBidirectional, TransportLoopback)
	require.NoError(t, err)
	return c
}

func intPtr(v int) *int { return &v }

func TestNewConnector(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		c := newTestConnector(t)
		assert.True(t, c.IsActive)
		assert.Equal(t, CircuitClosed, c.CircuitState)
		assert.Equal(t, DefaultFailureThreshold, c.FailureThreshold)
		assert.Equal(t, DefaultSuccessThreshold, c.SuccessThreshold)
		assert.Equal(t, DefaultRateLimitWindowSeconds, c.RateLimitWindowSeconds)
		assert.Equal(t, HealthStatusUnknown, c.HealthStatus)
		assert.Nil(t, c.RateLimit)
	})

	t.Run("rejects invalid codes", func(t *testing.T) {
		for _, code := range []string{"", "a", "ERP", "has space", "-leading"} {
			_, err := NewConnector(code, "x", ConnectorTypeERP, DirectionOutbound, TransportLoopback)
			assert.True(t, errors.Is(err, ErrInvalidConnectorCode), code)
		}
	})

	t.Run("requires endpoint for network transports", func(t *testing.T) {
		_, err := NewConnector("shop", "Shop", ConnectorTypeEcommerce, DirectionOutbound, TransportHTTP)
		assert.True(t, errors.Is(err, ErrInvalidConnector))
	})

	t.Run("rejects unknown enums", func(t *testing.T) {
		_, err := NewConnector("shop", "Shop", ConnectorType("PIGEON"), DirectionOutbound, TransportLoopback)
		assert.Error(t, err)
		_, err = NewConnector("shop", "Shop", ConnectorTypeEcommerce, Direction("SIDEWAYS"), TransportLoopback)
		assert.Error(t, err)
	})
}

func TestConnector_Validate_RateLimit(t *testing.T) {
	c := newTestConnector(t)
	c.RateLimit = intPtr(0)
	assert.Error(t, c.Validate())

	c.RateLimit = intPtr(10)
	c.RateLimitWindowSeconds = 0
	assert.Error(t, c.Validate())
}

func TestConnector_ConsumeRateLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unlimited when no limit configured", func(t *testing.T) {
		c := newTestConnector(t)
		d := c.ConsumeRateLimit(now)
		assert.True(t, d.Allowed)
		assert.True(t, d.Unlimited)
		assert.Equal(t, 0, c.CurrentCount)
	})

	t.Run("101st call in window is denied", func(t *testing.T) {
		c := newTestConnector(t)
		c.RateLimit = intPtr(100)

		for i := 0; i < 100; i++ {
			d := c.ConsumeRateLimit(now.Add(time.Duration(i) * time.Millisecond))
			require.True(t, d.Allowed, "call %d", i+1)
			assert.Equal(t, 99-i, d.Remaining)
		}

		d := c.ConsumeRateLimit(now.Add(30 * time.Second))
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		assert.Equal(t, 100, c.CurrentCount)
		require.NotNil(t, d.ResetAt)
		assert.Equal(t, now.Add(time.Minute), *d.ResetAt)

		after := c.ConsumeRateLimit(now.Add(time.Minute))
		assert.True(t, after.Allowed)
		assert.Equal(t, 1, c.CurrentCount)
		assert.Equal(t, 99, after.Remaining)
	})

	t.Run("first call starts the window", func(t *testing.T) {
		c := newTestConnector(t)
		c.RateLimit = intPtr(1)
		d := c.ConsumeRateLimit(now)
		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		require.NotNil(t, c.WindowStart)
		assert.Equal(t, now, *c.WindowStart)

		assert.False(t, c.ConsumeRateLimit(now.Add(time.Second)).Allowed)
	})
}

func TestConnector_CircuitBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 30 * time.Second

	t.Run("opens after failure threshold", func(t *testing.T) {
		c := newTestConnector(t)
		for i := 0; i < 4; i++ {
			assert.Nil(t, c.RecordFailure(now))
			assert.Equal(t, CircuitClosed, c.CircuitState)
		}
		tr := c.RecordFailure(now)
		require.NotNil(t, tr)
		assert.Equal(t, CircuitClosed, tr.From)
		assert.Equal(t, CircuitOpen, tr.To)
		assert.Equal(t, CircuitOpen, c.CircuitState)
		assert.Equal(t, HealthStatusUnhealthy, c.HealthStatus)
		require.NotNil(t, c.CircuitOpenedAt)
		assert.Equal(t, now, *c.CircuitOpenedAt)
	})

	t.Run("success in closed state decays failures", func(t *testing.T) {
		c := newTestConnector(t)
		c.RecordFailure(now)
		c.RecordFailure(now)
		assert.Equal(t, HealthStatusDegraded, c.HealthStatus)
		c.RecordSuccess(now)
		assert.Equal(t, 0, c.FailureCount)
		assert.Equal(t, HealthStatusHealthy, c.HealthStatus)
	})

	t.Run("half open exactly once per cooldown expiry", func(t *testing.T) {
		c := newTestConnector(t)
		for i := 0; i < 5; i++ {
			c.RecordFailure(now)
		}

		state, tr := c.ResolveCircuit(now.Add(10*time.Second), cooldown)
		assert.Equal(t, CircuitOpen, state)
		assert.Nil(t, tr)

		state, tr = c.ResolveCircuit(now.Add(cooldown), cooldown)
		assert.Equal(t, CircuitHalfOpen, state)
		require.NotNil(t, tr)
		assert.Equal(t, CircuitOpen, tr.From)

		state, tr = c.ResolveCircuit(now.Add(cooldown+time.Second), cooldown)
		assert.Equal(t, CircuitHalfOpen, state)
		assert.Nil(t, tr)
	})

	t.Run("closes after success threshold in half open", func(t *testing.T) {
		c := newTestConnector(t)
		c.CircuitState = CircuitHalfOpen
		c.FailureCount = 5

		assert.Nil(t, c.RecordSuccess(now))
		assert.Nil(t, c.RecordSuccess(now))
		tr := c.RecordSuccess(now)
		require.NotNil(t, tr)
		assert.Equal(t, CircuitClosed, c.CircuitState)
		assert.Equal(t, 0, c.FailureCount)
		assert.Equal(t, 0, c.SuccessCount)
		assert.Nil(t, c.CircuitOpenedAt)
	})

	t.Run("failure in half open reopens", func(t *testing.T) {
		c := newTestConnector(t)
		c.CircuitState = CircuitHalfOpen
		c.SuccessCount = 2
		tr := c.RecordFailure(now)
		require.NotNil(t, tr)
		assert.Equal(t, CircuitOpen, c.CircuitState)
		assert.Equal(t, 0, c.SuccessCount)
		assert.Equal(t, now.Add(cooldown), c.CircuitRetryAt(now, cooldown))
	})

	t.Run("reset forces closed", func(t *testing.T) {
		c := newTestConnector(t)
		for i := 0; i < 5; i++ {
			c.RecordFailure(now)
		}
		tr := c.ResetCircuit(now)
		require.NotNil(t, tr)
		assert.Equal(t, CircuitClosed, c.CircuitState)
		assert.Equal(t, 0, c.FailureCount)
		assert.Nil(t, c.ResetCircuit(now))
	})
}

func TestConnector_Snapshot(t *testing.T) {
	c := newTestConnector(t)
	c.TotalMessages = 3
	c.SuccessfulMessages = 2

	s := c.Snapshot()
	assert.Equal(t, "66.67", s.SuccessRate.StringFixed(2))
	assert.Equal(t, "erp-sap", s.Code)

	empty := newTestConnector(t).Snapshot()
	assert.True(t, empty.SuccessRate.IsZero())
}

func TestConnector_RecordHealthProbe(t *testing.T) {
	now := time.Now()
	c := newTestConnector(t)

	c.RecordHealthProbe(errors.New("dial tcp: refused"), now)
	assert.Equal(t, HealthStatusUnhealthy, c.HealthStatus)
	assert.Equal(t, "dial tcp: refused", c.LastHealthError)
	require.NotNil(t, c.LastHealthCheck)

	c.RecordHealthProbe(nil, now)
	assert.Equal(t, HealthStatusHealthy, c.HealthStatus)
	assert.Empty(t, c.LastHealthError)
}
