// Package handlers contains HTTP middleware and health checks of the API.
package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the state of the service and its storage.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc performs a single check. A non-nil error means unhealthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthReportFunc is a check that also returns details for the response,
// e.g. connection pool statistics.
type HealthReportFunc func(ctx context.Context) (any, error)

// HealthStatus represents the overall health status of the service.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`

	// Backend is the snapshot storage in use (memory, postgres, redis).
	Backend string `json:"backend,omitempty"`

	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// CompositeHealthChecker runs named checks in parallel.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthReportFunc
	startTime time.Time
	version   string
	backend   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a checker for the given storage backend.
func NewCompositeHealthChecker(version, backend string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:    make(map[string]HealthReportFunc),
		startTime: time.Now(),
		version:   version,
		backend:   backend,
		timeout:   5 * time.Second,
	}
}

// SetTimeout sets the timeout for individual health checks.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// AddCheck adds a named health check function.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.AddReport(name, func(ctx context.Context) (any, error) {
		return nil, check(ctx)
	})
}

// AddReport adds a named check whose details are included in the result.
func (c *CompositeHealthChecker) AddReport(name string, report HealthReportFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = report
}

// Check performs all health checks and returns the aggregated status.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]HealthReportFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Backend:   c.backend,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		bad []string
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthReportFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			details, err := check(checkCtx)
			res := CheckResult{
				Healthy:  err == nil,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
				Details:  details,
			}
			if err != nil {
				res.Message = err.Error()
			}

			mu.Lock()
			status.Checks[name] = res
			if err != nil {
				bad = append(bad, name)
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	if len(bad) > 0 {
		sort.Strings(bad)
		status.Healthy = false
		status.Message = "failed: " + strings.Join(bad, ", ")
	} else {
		status.Message = "ok"
	}
	return status
}
