// Package metrics holds atomic counters for total/successful/failed
// requests, quota errors, and retry attempts, exposed both as the GET
// /health JSON snapshot and a Prometheus /metrics scrape endpoint.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide counters. A single instance is shared
// across all requests; each field is an atomic counter with no ordering
// requirement between them.
type Metrics struct {
	TotalRequests      prometheus.Counter
	SuccessfulRequests prometheus.Counter
	FailedRequests     prometheus.Counter
	QuotaErrors        prometheus.Counter
	RetryAttempts      prometheus.Counter
}

// New registers and returns a Metrics instance against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TotalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vertex_claude_proxy_requests_total",
			Help: "Total chat completion requests received.",
		}),
		SuccessfulRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vertex_claude_proxy_requests_successful_total",
			Help: "Chat completion requests that completed without error.",
		}),
		FailedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vertex_claude_proxy_requests_failed_total",
			Help: "Chat completion requests that failed.",
		}),
		QuotaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vertex_claude_proxy_quota_errors_total",
			Help: "Upstream 429 responses classified as quota exhaustion.",
		}),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vertex_claude_proxy_retry_attempts_total",
			Help: "Upstream call retry attempts.",
		}),
	}
	reg.MustRegister(m.TotalRequests, m.SuccessfulRequests, m.FailedRequests, m.QuotaErrors, m.RetryAttempts)
	return m
}

// Snapshot is the plain-integer view backing GET /health's metrics object.
// Prometheus counters don't expose their current value directly, so this
// reads dto.Metric via Write, the supported way to introspect a counter's
// count without a separate atomic mirror.
type Snapshot struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	QuotaErrors        int64 `json:"quota_errors"`
	RetryAttempts      int64 `json:"retry_attempts"`
}

func counterValue(c prometheus.Counter) int64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

// Snapshot reads the current value of every counter into a plain struct
// for JSON serialization.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:      counterValue(m.TotalRequests),
		SuccessfulRequests: counterValue(m.SuccessfulRequests),
		FailedRequests:     counterValue(m.FailedRequests),
		QuotaErrors:        counterValue(m.QuotaErrors),
		RetryAttempts:      counterValue(m.RetryAttempts),
	}
}
