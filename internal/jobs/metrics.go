package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	stockIssues *prometheus.CounterVec
	lastIssues  *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddStockIssues counts consistency findings of one kind at a warehouse.
func (m *Metrics) AddStockIssues(kind string, warehouseID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.stockIssues.WithLabelValues(kind, formatInt(warehouseID)).Add(float64(count))
}

// SetLastSweep records the number of findings of the latest sweep per kind.
// Kinds absent from counts are reset to zero.
func (m *Metrics) SetLastSweep(kinds []string, counts map[string]int) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.lastIssues.WithLabelValues(kind).Set(float64(counts[kind]))
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labstock_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labstock_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labstock_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	stockIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labstock_stock_issues_total",
		Help: "Stock consistency findings grouped by kind and warehouse.",
	}, []string{"kind", "warehouse"})
	lastIssues := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "labstock_stock_issues_last_sweep",
		Help: "Findings reported by the most recent consistency sweep.",
	}, []string{"kind"})
	registerer.MustRegister(runs, failures, duration, stockIssues, lastIssues)
	return &Metrics{runs: runs, failures: failures, duration: duration, stockIssues: stockIssues, lastIssues: lastIssues}
}
