package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDuplicateChecker is returned when two checkers register the same name.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// HealthChecker reports whether one component is able to serve. The note
// store registers one that pings sqlite.
type HealthChecker interface {
	// Name identifies the component in readiness responses.
	Name() string

	// Check returns nil when healthy. Implementations honor ctx.
	Check(ctx context.Context) error
}

// HealthRegistry collects checkers at startup and answers readiness probes.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is the aggregate or per-check verdict.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult aggregates every registered check. Status is unhealthy as
// soon as any single check is.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of one checker.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Registry is the HealthRegistry used by the service. Registration happens
// during startup; CheckAll may be called from concurrent probe requests.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *Registry {
	return &Registry{checkers: make(map[string]HealthChecker)}
}

// Register adds a checker, rejecting duplicate names.
func (r *Registry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := checker.Name()
	if _, exists := r.checkers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}
	r.checkers[name] = checker

	return nil
}

// CheckAll runs every registered check concurrently and fans the results in.
func (r *Registry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := make([]HealthChecker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	result := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	type namedResult struct {
		name  string
		check *CheckResult
	}

	results := make(chan namedResult, len(checkers))
	for _, checker := range checkers {
		go func(c HealthChecker) {
			results <- namedResult{name: c.Name(), check: runCheck(ctx, c)}
		}(checker)
	}

	for range checkers {
		nr := <-results
		result.Checks[nr.name] = nr.check
		if nr.check.Status == HealthStatusUnhealthy {
			result.Status = HealthStatusUnhealthy
		}
	}

	return result
}

func runCheck(ctx context.Context, c HealthChecker) *CheckResult {
	start := time.Now()
	err := c.Check(ctx)

	check := &CheckResult{
		Status:   HealthStatusHealthy,
		Duration: time.Since(start),
	}
	if err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	}

	return check
}
