package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics for the sharing engine.
type Collector struct {
	checksTotal       *prometheus.CounterVec
	invalidRuleSkips  *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
}

// NewCollector creates a new Collector and registers its metrics with the
// default Prometheus registry.
func NewCollector() *Collector {
	return &Collector{
		checksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rowshare_access_checks_total",
			Help: "Total number of single-record access checks by object type and outcome",
		}, []string{"object_type", "result"}),
		invalidRuleSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rowshare_invalid_rules_skipped_total",
			Help: "Total number of persisted sharing rules excluded from enforcement because they failed validation",
		}, []string{"object_type"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rowshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rowshare_http_requests_total",
			Help: "Total number of HTTP requests by method, path and status code",
		}, []string{"method", "path", "status"}),
	}
}

// RecordCheck records the outcome of a single-record access check
func (c *Collector) RecordCheck(objectType string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	c.checksTotal.WithLabelValues(objectType, result).Inc()
}

// RecordInvalidRuleSkip records a persisted rule excluded from enforcement
func (c *Collector) RecordInvalidRuleSkip(objectType string) {
	c.invalidRuleSkips.WithLabelValues(objectType).Inc()
}
