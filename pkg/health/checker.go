// Package health aggregates readiness probes for the service's external
// dependencies: Redis, the payment providers and background workers.
package health

import (
	"context"
	"sync"
	"time"
)

// Status classifies a single component or the service as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status    Status                 `json:"status"`
	Component string                 `json:"component"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

const defaultCheckTimeout = 10 * time.Second

// HealthChecker fans out to every registered probe and folds the
// results into a single service status.
type HealthChecker struct {
	probes  []Checker
	timeout time.Duration
}

// NewHealthChecker creates an aggregator with a shared deadline for a
// full probe round.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &HealthChecker{timeout: timeout}
}

// Register adds a probe. Registration happens once during container
// wiring; it is not safe to call concurrently with Check.
func (h *HealthChecker) Register(p Checker) {
	h.probes = append(h.probes, p)
}

// Check runs every probe in parallel and reports the worst status seen:
// any unhealthy probe marks the service unhealthy, otherwise any
// degraded probe marks it degraded.
func (h *HealthChecker) Check(ctx context.Context) (Status, map[string]CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	type probeResult struct {
		name   string
		result CheckResult
	}

	out := make(chan probeResult, len(h.probes))
	var wg sync.WaitGroup
	for _, p := range h.probes {
		wg.Add(1)
		go func(p Checker) {
			defer wg.Done()
			out <- probeResult{name: p.Name(), result: p.Check(ctx)}
		}(p)
	}
	wg.Wait()
	close(out)

	overall := StatusHealthy
	results := make(map[string]CheckResult, len(h.probes))
	for r := range out {
		results[r.name] = r.result
		switch r.result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	return overall, results
}

// NewCheckResult builds a result for component. A non-nil err forces
// the status to unhealthy regardless of the status passed in.
func NewCheckResult(component string, status Status, message string, err error) CheckResult {
	r := CheckResult{
		Component: component,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	if err != nil {
		r.Error = err.Error()
		r.Status = StatusUnhealthy
	}
	return r
}

// NewHealthyResult builds a passing result.
func NewHealthyResult(component, message string) CheckResult {
	return NewCheckResult(component, StatusHealthy, message, nil)
}

// NewUnhealthyResult builds a failing result from err.
func NewUnhealthyResult(component string, err error) CheckResult {
	return NewCheckResult(component, StatusUnhealthy, "", err)
}

// WithMetadata returns a copy of the result with key set.
func (r CheckResult) WithMetadata(key string, value interface{}) CheckResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
	return r
}

// WithDuration returns a copy of the result with the probe duration set.
func (r CheckResult) WithDuration(d time.Duration) CheckResult {
	r.Duration = d
	return r
}
