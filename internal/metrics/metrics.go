package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records engine and HTTP activity. A nil *Metrics is a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	reportsTotal      *prometheus.CounterVec
	reportDuration    *prometheus.HistogramVec
	jobsTotal         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	periodsWritten    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. When reg is
// also a Gatherer it backs Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_built_total",
			Help: "Total reports assembled by city, kind and outcome.",
		}, []string{"city", "kind", "outcome"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_build_duration_seconds",
			Help:    "Histogram of report assembly durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recompute_jobs_total",
			Help: "Total recompute jobs processed by kind, city and outcome.",
		}, []string{"kind", "city", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recompute_job_duration_seconds",
			Help:    "Histogram of recompute job durations.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		periodsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periods_written_total",
			Help: "Total stat period records written by recompute stage.",
		}, []string{"city", "stage"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.reportsTotal,
		m.reportDuration,
		m.jobsTotal,
		m.jobDuration,
		m.periodsWritten,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ReportBuilt records one report assembly.
func (m *Metrics) ReportBuilt(city, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(city, kind, outcome(err)).Inc()
	m.reportDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// JobProcessed records one finished recompute job.
func (m *Metrics) JobProcessed(kind, city string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, city, outcome(err)).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) PeriodsWritten(city, stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.periodsWritten.WithLabelValues(city, stage).Add(float64(n))
}

// Middleware counts requests by matched route and status.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
