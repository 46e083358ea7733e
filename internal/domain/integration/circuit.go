package integration

import "time"

// CircuitState is the state of a connector's circuit breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// IsValid checks if the circuit state is valid
func (s CircuitState) IsValid() bool {
	switch s {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
		return true
	}
	return false
}

// CircuitTransition describes a state change of the breaker
type CircuitTransition struct {
	From CircuitState
	To   CircuitState
	At   time.Time
}

// RecordFailure counts a failed delivery attempt. The circuit opens when the
// failure threshold is reached while CLOSED, and on any failure while HALF_OPEN.
func (c *Connector) RecordFailure(now time.Time) *CircuitTransition {
	c.FailureCount++
	c.LastFailureAt = &now
	c.Touch(now)

	var transition *CircuitTransition
	switch c.CircuitState {
	case CircuitClosed:
		if c.FailureCount >= c.FailureThreshold {
			transition = c.transition(CircuitOpen, now)
		}
	case CircuitHalfOpen:
		transition = c.transition(CircuitOpen, now)
	}
	c.refreshHealth()
	return transition
}

// RecordSuccess counts a successful delivery attempt. While HALF_OPEN enough
// successes close the circuit; while CLOSED a success clears the failure count.
func (c *Connector) RecordSuccess(now time.Time) *CircuitTransition {
	c.Touch(now)

	var transition *CircuitTransition
	switch c.CircuitState {
	case CircuitHalfOpen:
		c.SuccessCount++
		if c.SuccessCount >= c.SuccessThreshold {
			transition = c.transition(CircuitClosed, now)
		}
	case CircuitClosed:
		c.FailureCount = 0
	}
	c.refreshHealth()
	return transition
}

// ResolveCircuit returns the effective state at now. An OPEN circuit whose
// cooldown has elapsed moves to HALF_OPEN; the returned transition is non-nil
// only on the call that performs that move.
func (c *Connector) ResolveCircuit(now time.Time, cooldown time.Duration) (CircuitState, *CircuitTransition) {
	if c.CircuitState != CircuitOpen {
		return c.CircuitState, nil
	}
	if c.CircuitOpenedAt != nil && now.Sub(*c.CircuitOpenedAt) < cooldown {
		return CircuitOpen, nil
	}
	transition := c.transition(CircuitHalfOpen, now)
	c.refreshHealth()
	c.Touch(now)
	return CircuitHalfOpen, transition
}

// CircuitRetryAt is the earliest time an OPEN circuit will admit a trial
func (c *Connector) CircuitRetryAt(now time.Time, cooldown time.Duration) time.Time {
	if c.CircuitState != CircuitOpen || c.CircuitOpenedAt == nil {
		return now
	}
	return c.CircuitOpenedAt.Add(cooldown)
}

// ResetCircuit forces the circuit CLOSED and clears its counters
func (c *Connector) ResetCircuit(now time.Time) *CircuitTransition {
	var transition *CircuitTransition
	if c.CircuitState != CircuitClosed {
		transition = c.transition(CircuitClosed, now)
	}
	c.FailureCount = 0
	c.SuccessCount = 0
	c.refreshHealth()
	c.Touch(now)
	return transition
}

func (c *Connector) transition(to CircuitState, now time.Time) *CircuitTransition {
	t := &CircuitTransition{From: c.CircuitState, To: to, At: now}
	c.CircuitState = to
	switch to {
	case CircuitOpen:
		c.CircuitOpenedAt = &now
		c.SuccessCount = 0
	case CircuitHalfOpen:
		c.SuccessCount = 0
	case CircuitClosed:
		c.FailureCount = 0
		c.SuccessCount = 0
		c.CircuitOpenedAt = nil
	}
	return t
}
