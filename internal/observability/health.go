package observability

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"btc-treasury-tracker/internal/storage"
)

// Status is a health classification.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusDegraded      Status = "degraded"
	StatusUnhealthy     Status = "unhealthy"
	StatusNotConfigured Status = "not_configured"
)

func (s Status) gaugeValue() float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	case StatusNotConfigured:
		return -1
	default:
		return 0
	}
}

// Service names reported by the checker.
const (
	ServiceDatabase  = "database"
	ServiceRateLimit = "ratelimit"
	ServiceAPI       = "api"
)

// ServiceStatus is the result of one dependency check.
type ServiceStatus struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// HealthMetrics are process-level figures attached to a report.
type HealthMetrics struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	ErrorRate       float64 `json:"error_rate"`
	AverageMs       float64 `json:"average_response_ms"`
	TotalOperations int     `json:"total_operations"`
	TotalErrors     int     `json:"total_errors"`
	HostMemoryUsed  float64 `json:"host_memory_used_percent,omitempty"`
}

// HealthReport is the aggregate health document.
type HealthReport struct {
	Status    Status          `json:"status"`
	Services  []ServiceStatus `json:"services"`
	Metrics   HealthMetrics   `json:"metrics"`
	Alerts    []Alert         `json:"alerts"`
	Timestamp time.Time       `json:"timestamp"`
}

// HealthChecker runs dependency checks and aggregates them.
type HealthChecker struct {
	db       storage.Pinger
	limiter  storage.Pinger // nil when the durable tier is not configured
	reporter Reporter
	started  time.Time
	now      func() time.Time
	hostMem  func() (float64, error)
}

// NewHealthChecker creates a HealthChecker. limiter may be nil.
func NewHealthChecker(db, limiter storage.Pinger, reporter Reporter) *HealthChecker {
	return &HealthChecker{
		db:       db,
		limiter:  limiter,
		reporter: reporter,
		started:  time.Now(),
		now:      time.Now,
		hostMem:  hostMemoryUsed,
	}
}

func hostMemoryUsed() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Check runs all dependency checks concurrently and aggregates the result.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	checks := []func(context.Context) ServiceStatus{
		h.checkDatabase,
		h.checkRateLimit,
		h.checkAPI,
	}

	services := make([]ServiceStatus, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			services[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	now := h.now()
	stats := h.reporter.Stats()
	errorRate := h.reporter.ErrorRate(now)

	metrics := HealthMetrics{
		UptimeSeconds:   now.Sub(h.started).Seconds(),
		ErrorRate:       errorRate,
		AverageMs:       stats.AverageMs,
		TotalOperations: stats.TotalOperations,
		TotalErrors:     stats.TotalErrors,
	}
	if used, err := h.hostMem(); err == nil {
		metrics.HostMemoryUsed = used
	}

	for _, s := range services {
		RecordServiceHealth(s.Name, s.Status)
	}
	RecordUptime(metrics.UptimeSeconds)

	alerts := h.reporter.Alerts()
	if alerts == nil {
		alerts = []Alert{}
	}

	return HealthReport{
		Status:    Aggregate(services, errorRate),
		Services:  services,
		Metrics:   metrics,
		Alerts:    alerts,
		Timestamp: now,
	}
}

// Ready performs the trivial datastore read used by readiness probes.
func (h *HealthChecker) Ready(ctx context.Context) error {
	return h.db.Ping(ctx)
}

func (h *HealthChecker) checkDatabase(ctx context.Context) ServiceStatus {
	return ping(ctx, ServiceDatabase, h.db, StatusUnhealthy)
}

// checkRateLimit reports degraded rather than unhealthy on failure since the
// in-memory tier keeps admitting requests.
func (h *HealthChecker) checkRateLimit(ctx context.Context) ServiceStatus {
	if h.limiter == nil {
		return ServiceStatus{Name: ServiceRateLimit, Status: StatusNotConfigured}
	}
	return ping(ctx, ServiceRateLimit, h.limiter, StatusDegraded)
}

func (h *HealthChecker) checkAPI(context.Context) ServiceStatus {
	return ServiceStatus{Name: ServiceAPI, Status: StatusHealthy}
}

func ping(ctx context.Context, name string, p storage.Pinger, onFailure Status) ServiceStatus {
	start := time.Now()
	err := p.Ping(ctx)
	s := ServiceStatus{
		Name:      name,
		Status:    StatusHealthy,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		s.Status = onFailure
		s.Error = err.Error()
	}
	return s
}

// Aggregate computes the overall status: unhealthy if any service is
// unhealthy; otherwise degraded if any is degraded or the error rate exceeds
// the degraded threshold; otherwise healthy. not_configured is ignored.
func Aggregate(services []ServiceStatus, errorRate float64) Status {
	degraded := errorRate > DegradedErrorRate
	for _, s := range services {
		switch s.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}
