package observability

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"btc-treasury-tracker/internal/logger"
)

// Alert thresholds.
const (
	ErrorRateCritical   = 0.10
	AvgDurationWarning  = 2 * time.Second
	HeapUsageCritical   = 0.90
	DegradedErrorRate   = 0.05
	DefaultSlowOp       = time.Second
	DefaultErrorWindow  = time.Hour
	DefaultRetention    = time.Hour
	defaultPerfCapacity = 100
	defaultErrCapacity  = 50
)

// Alert levels.
const (
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// Recorder accepts performance samples and errors.
type Recorder interface {
	TrackPerformance(name string, d time.Duration, meta map[string]string)
	LogError(err error, ctx map[string]string)
}

// Reporter exposes derived statistics over recorded samples.
type Reporter interface {
	Stats() Stats
	ErrorRate(now time.Time) float64
	Alerts() []Alert
}

// PerformanceMetric is one timed operation.
type PerformanceMetric struct {
	Name      string
	Duration  time.Duration
	Metadata  map[string]string
	Timestamp time.Time
}

// ErrorLog is one recorded failure.
type ErrorLog struct {
	Message   string
	Context   map[string]string
	Timestamp time.Time
}

// Stats summarizes the retained samples.
type Stats struct {
	TotalOperations int     `json:"total_operations"`
	AverageMs       float64 `json:"average_ms"`
	MaxMs           float64 `json:"max_ms"`
	MinMs           float64 `json:"min_ms"`
	SlowOperations  int     `json:"slow_operations"`
	TotalErrors     int     `json:"total_errors"`
}

// Alert is a threshold breach.
type Alert struct {
	Level     string  `json:"level"`
	Metric    string  `json:"metric"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// MonitorOptions configures a Monitor. Zero values take defaults.
type MonitorOptions struct {
	PerformanceCapacity int
	ErrorCapacity       int
	SlowThreshold       time.Duration
	ErrorWindow         time.Duration
	Retention           time.Duration
}

// HeapSample is a heap utilisation reading.
type HeapSample struct {
	InUse uint64
	Sys   uint64
}

// Monitor keeps bounded buffers of recent performance samples and errors.
type Monitor struct {
	mu   sync.Mutex
	perf *ring[PerformanceMetric]
	errs *ring[ErrorLog]

	slow      time.Duration
	window    time.Duration
	retention time.Duration

	now  func() time.Time
	heap func() HeapSample
	log  *logger.Entry
}

var (
	_ Recorder = (*Monitor)(nil)
	_ Reporter = (*Monitor)(nil)
)

// NewMonitor creates a Monitor.
func NewMonitor(opts MonitorOptions, log *logger.Log) *Monitor {
	if opts.PerformanceCapacity <= 0 {
		opts.PerformanceCapacity = defaultPerfCapacity
	}
	if opts.ErrorCapacity <= 0 {
		opts.ErrorCapacity = defaultErrCapacity
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowOp
	}
	if opts.ErrorWindow <= 0 {
		opts.ErrorWindow = DefaultErrorWindow
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	return &Monitor{
		perf:      newRing[PerformanceMetric](opts.PerformanceCapacity),
		errs:      newRing[ErrorLog](opts.ErrorCapacity),
		slow:      opts.SlowThreshold,
		window:    opts.ErrorWindow,
		retention: opts.Retention,
		now:       time.Now,
		heap:      readHeap,
		log:       log.WithComponent("monitor"),
	}
}

func readHeap() HeapSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return HeapSample{InUse: ms.HeapInuse, Sys: ms.HeapSys}
}

// TrackPerformance records a timed operation. Operations slower than the
// slow threshold are logged at warning level.
func (m *Monitor) TrackPerformance(name string, d time.Duration, meta map[string]string) {
	sample := PerformanceMetric{Name: name, Duration: d, Metadata: meta, Timestamp: m.now()}

	m.mu.Lock()
	m.perf.push(sample)
	m.mu.Unlock()

	slow := d > m.slow
	RecordOperation(name, d.Seconds(), slow)
	if slow {
		fields := logger.Fields{"operation": name, "duration_ms": d.Milliseconds()}
		for k, v := range meta {
			fields[k] = v
		}
		m.log.WithFields(fields).Warn("slow operation")
	}
}

// LogError records a failure with its context.
func (m *Monitor) LogError(err error, ctx map[string]string) {
	if err == nil {
		return
	}
	entry := ErrorLog{Message: err.Error(), Context: ctx, Timestamp: m.now()}

	m.mu.Lock()
	m.errs.push(entry)
	m.mu.Unlock()

	RecordError(ctx["component"])

	fields := logger.Fields{}
	for k, v := range ctx {
		fields[k] = v
	}
	m.log.WithFields(fields).WithError(err).Error("operation failed")
}

// Stats summarizes retained samples.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{TotalOperations: m.perf.len(), TotalErrors: m.errs.len()}
	if s.TotalOperations == 0 {
		return s
	}

	var total time.Duration
	for i, p := range m.perf.snapshot() {
		total += p.Duration
		ms := float64(p.Duration) / float64(time.Millisecond)
		if ms > s.MaxMs {
			s.MaxMs = ms
		}
		if i == 0 || ms < s.MinMs {
			s.MinMs = ms
		}
		if p.Duration > m.slow {
			s.SlowOperations++
		}
	}
	s.AverageMs = float64(total) / float64(time.Millisecond) / float64(s.TotalOperations)
	return s
}

// ErrorRate is errors over tracked operations within the error window ending
// at now, capped at 1. It is 0 when no operations fall in the window.
func (m *Monitor) ErrorRate(now time.Time) float64 {
	since := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	var ops, errs int
	for _, p := range m.perf.snapshot() {
		if !p.Timestamp.Before(since) {
			ops++
		}
	}
	for _, e := range m.errs.snapshot() {
		if !e.Timestamp.Before(since) {
			errs++
		}
	}

	switch {
	case errs == 0 || ops == 0:
		return 0
	case errs >= ops:
		return 1
	default:
		return float64(errs) / float64(ops)
	}
}

// Alerts evaluates thresholds against current samples and heap usage.
func (m *Monitor) Alerts() []Alert {
	var alerts []Alert

	if rate := m.ErrorRate(m.now()); rate > ErrorRateCritical {
		alerts = append(alerts, Alert{
			Level:     AlertCritical,
			Metric:    "error_rate",
			Message:   fmt.Sprintf("error rate %.1f%% exceeds %.0f%%", rate*100, ErrorRateCritical*100),
			Value:     rate,
			Threshold: ErrorRateCritical,
		})
	}

	threshold := float64(AvgDurationWarning / time.Millisecond)
	if stats := m.Stats(); stats.TotalOperations > 0 && stats.AverageMs > threshold {
		alerts = append(alerts, Alert{
			Level:     AlertWarning,
			Metric:    "avg_response_ms",
			Message:   fmt.Sprintf("average response %.0fms exceeds %.0fms", stats.AverageMs, threshold),
			Value:     stats.AverageMs,
			Threshold: threshold,
		})
	}

	if h := m.heap(); h.Sys > 0 {
		usage := float64(h.InUse) / float64(h.Sys)
		if usage > HeapUsageCritical {
			alerts = append(alerts, Alert{
				Level:     AlertCritical,
				Metric:    "heap_usage",
				Message:   fmt.Sprintf("heap usage %.1f%% exceeds %.0f%%", usage*100, HeapUsageCritical*100),
				Value:     usage,
				Threshold: HeapUsageCritical,
			})
		}
	}

	return alerts
}

// recent returns retained performance samples and errors, oldest first.
func (m *Monitor) recent() ([]PerformanceMetric, []ErrorLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perf.snapshot(), m.errs.snapshot()
}

// Prune drops samples older than the retention period.
func (m *Monitor) Prune(now time.Time) int {
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.perf.dropOldestWhile(func(p PerformanceMetric) bool { return p.Timestamp.Before(cutoff) })
	n += m.errs.dropOldestWhile(func(e ErrorLog) bool { return e.Timestamp.Before(cutoff) })
	return n
}

// Run prunes on a fixed interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := m.Prune(t); n > 0 {
				m.log.WithField("pruned", n).Debug("monitor buffers pruned")
			}
		}
	}
}
