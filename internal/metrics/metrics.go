package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can create as many as they need.
type Collector struct {
	reg *prometheus.Registry

	ReportsSubmitted *prometheus.CounterVec   // status label: validated|pending|flagged|rejected
	ReportsRefused   *prometheus.CounterVec   // reason label: duplicate|rate_limit
	ValidatorScore   *prometheus.HistogramVec // validator label
	ValidatorErrors  *prometheus.CounterVec   // validator label

	EstimatesRecomputed prometheus.Counter
	CascadeStations     prometheus.Counter

	LockWait      prometheus.Histogram
	LockConflicts prometheus.Counter

	EventsPublished   prometheus.Counter
	EventsPublishErrs prometheus.Counter
	NATSConnected     prometheus.Gauge

	HTTPRequests *prometheus.CounterVec   // method, route, status labels
	HTTPDuration *prometheus.HistogramVec // method, route labels
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ReportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trains_reports_submitted_total",
			Help: "Reports stored, by validation status.",
		}, []string{"status"}),
		ReportsRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trains_reports_refused_total",
			Help: "Reports refused without being stored.",
		}, []string{"reason"}),
		ValidatorScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trains_validator_score",
			Help:    "Scores produced by each validator.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"validator"}),
		ValidatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trains_validator_errors_total",
			Help: "Validator runs that errored or panicked.",
		}, []string{"validator"}),
		EstimatesRecomputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trains_estimates_recomputed_total",
			Help: "Estimate recomputations.",
		}),
		CascadeStations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trains_cascade_stations_total",
			Help: "Downstream stations cancelled by cascades.",
		}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trains_lock_wait_seconds",
			Help:    "Time spent acquiring submission locks.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		LockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trains_lock_conflicts_total",
			Help: "Lock acquisitions that timed out.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trains_events_published_total",
			Help: "Total events published.",
		}),
		EventsPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trains_events_publish_errors_total",
			Help: "Total event publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trains_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trains_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trains_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.ReportsSubmitted, c.ReportsRefused, c.ValidatorScore, c.ValidatorErrors,
		c.EstimatesRecomputed, c.CascadeStations,
		c.LockWait, c.LockConflicts,
		c.EventsPublished, c.EventsPublishErrs, c.NATSConnected,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// The methods below let a nil *Collector be passed where metrics are optional.

func (c *Collector) ReportStored(status string) {
	if c != nil {
		c.ReportsSubmitted.WithLabelValues(status).Inc()
	}
}

func (c *Collector) ReportRefused(reason string) {
	if c != nil {
		c.ReportsRefused.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) ObserveValidator(validator string, score float64, failed bool) {
	if c == nil {
		return
	}
	c.ValidatorScore.WithLabelValues(validator).Observe(score)
	if failed {
		c.ValidatorErrors.WithLabelValues(validator).Inc()
	}
}

func (c *Collector) EstimateRecomputed() {
	if c != nil {
		c.EstimatesRecomputed.Inc()
	}
}

func (c *Collector) StationsCascaded(n int) {
	if c != nil {
		c.CascadeStations.Add(float64(n))
	}
}

func (c *Collector) LockAcquired(wait time.Duration, conflict bool) {
	if c == nil {
		return
	}
	c.LockWait.Observe(wait.Seconds())
	if conflict {
		c.LockConflicts.Inc()
	}
}

// EventPublished, EventPublishFailed and NATSSetConnected satisfy events.PublisherMetrics.

func (c *Collector) EventPublished() {
	if c != nil {
		c.EventsPublished.Inc()
	}
}

func (c *Collector) EventPublishFailed() {
	if c != nil {
		c.EventsPublishErrs.Inc()
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
