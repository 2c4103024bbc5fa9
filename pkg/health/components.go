package health

import (
	"context"
	"time"
)

// CircuitBreakerChecker reports the state of a provider client's
// circuit breaker. An open circuit means calls are being rejected
// before they reach the provider, so it surfaces as unhealthy.
type CircuitBreakerChecker struct {
	name   string
	state  func() string
	counts func() map[string]interface{}
}

// NewCircuitBreakerChecker wraps the state and counts accessors of a
// breaker-protected client.
func NewCircuitBreakerChecker(name string, stateGetter func() string, countsGetter func() map[string]interface{}) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{name: name, state: stateGetter, counts: countsGetter}
}

// Check maps breaker state to a health status: closed is healthy,
// half-open degraded, open unhealthy.
func (c *CircuitBreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.state()

	var result CheckResult
	switch state {
	case "closed":
		result = NewHealthyResult(c.name, "circuit closed")
	case "half-open":
		result = NewCheckResult(c.name, StatusDegraded, "circuit half-open", nil)
	case "open":
		result = NewCheckResult(c.name, StatusUnhealthy, "circuit open", nil)
	default:
		result = NewCheckResult(c.name, StatusUnhealthy, "unknown circuit state", nil)
	}

	result.Metadata = c.counts()

	return result.
		WithMetadata("circuit_state", state).
		WithDuration(time.Since(start))
}

// Name returns the checker name.
func (c *CircuitBreakerChecker) Name() string {
	return c.name
}

// WorkerChecker reports whether a background worker's loop is running.
type WorkerChecker struct {
	name    string
	running func() bool
	status  func() map[string]interface{}
}

// NewWorkerChecker wraps a worker's liveness and status accessors.
func NewWorkerChecker(name string, isRunning func() bool, getStatus func() map[string]interface{}) *WorkerChecker {
	return &WorkerChecker{name: name, running: isRunning, status: getStatus}
}

// Check reports healthy while the worker loop is running.
func (c *WorkerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	running := c.running()

	result := NewHealthyResult(c.name, "worker running")
	if !running {
		result = NewCheckResult(c.name, StatusUnhealthy, "worker not running", nil)
	}

	result.Metadata = c.status()

	return result.
		WithMetadata("running", running).
		WithDuration(time.Since(start))
}

// Name returns the checker name.
func (c *WorkerChecker) Name() string {
	return c.name
}
