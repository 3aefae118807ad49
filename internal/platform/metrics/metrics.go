package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Services accept
// a *Metrics via options and tolerate nil so unit tests skip registration.
type Metrics struct {
	CatalogCalls       *prometheus.CounterVec
	CatalogLatency     *prometheus.HistogramVec
	CascadeTransitions *prometheus.CounterVec
	CascadeStaleDrops  prometheus.Counter
	Submissions        *prometheus.CounterVec
	BuyersReconciled   *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CatalogCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_catalog_calls_total",
			Help: "Total catalog API calls by operation and outcome",
		}, []string{"op", "outcome"}),
		CatalogLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_catalog_call_duration_seconds",
			Help:    "Catalog API call latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		CascadeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_cascade_transitions_total",
			Help: "Selection cascade transitions by level and outcome",
		}, []string{"level", "outcome"}),
		CascadeStaleDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_cascade_stale_responses_dropped_total",
			Help: "Cascade fetch completions discarded because a newer transition superseded them",
		}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission attempts by outcome",
		}, []string{"outcome"}),
		BuyersReconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_buyers_reconciled_total",
			Help: "Buyer rows reconciled by result (found or created)",
		}, []string{"result"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveCatalogCall records one catalog call. Safe on a nil receiver.
func (m *Metrics) ObserveCatalogCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CatalogCalls.WithLabelValues(op, outcome).Inc()
	m.CatalogLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveCascadeTransition records one cascade transition outcome.
func (m *Metrics) ObserveCascadeTransition(level string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CascadeTransitions.WithLabelValues(level, outcome).Inc()
}

// IncStaleDrop counts a discarded stale cascade completion.
func (m *Metrics) IncStaleDrop() {
	if m == nil {
		return
	}
	m.CascadeStaleDrops.Inc()
}

// IncSubmission counts a submission attempt by outcome.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// IncBuyerReconciled counts one reconciled buyer row.
func (m *Metrics) IncBuyerReconciled(result string) {
	if m == nil {
		return
	}
	m.BuyersReconciled.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(route, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
