// Package metrics defines and registers all custom Prometheus metrics for the
// docai client. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on import and
// served by the agent's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/documentai/docai/internal/core/ports"
)

const namespace = "docai"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionAuthTotal counts completed login/signup calls.
// Labels:
//   - operation: "login" or "signup"
//   - result: "success", "rejected", "unreachable", "malformed", "superseded", "error"
var SessionAuthTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_auth_total",
		Help:      "Total number of authentication calls, by operation and result.",
	},
	[]string{"operation", "result"},
)

// SessionAuthDuration measures the round trip of an authentication call.
var SessionAuthDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_auth_duration_seconds",
		Help:      "Duration of login/signup calls against the identity API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// SessionAuthInflight is the number of pending authentication calls.
var SessionAuthInflight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_auth_inflight",
		Help:      "Authentication calls currently waiting on the identity API.",
	},
)

// ── Document metrics ──────────────────────────────────────────────────────────

// DocumentRequestsTotal counts document API calls.
// Labels:
//   - operation: "upload", "list", "delete", "chat", "download"
//   - result: "success" or a failure class
var DocumentRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_requests_total",
		Help:      "Total number of document API calls, by operation and result.",
	},
	[]string{"operation", "result"},
)

// UploadQueueDepth tracks documents waiting for an upload worker.
var UploadQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upload_queue_depth",
		Help:      "Current number of documents waiting for an upload worker.",
	},
)

// SessionObserver feeds session store events into the metrics above.
type SessionObserver struct{}

var _ ports.SessionObserver = SessionObserver{}

func (SessionObserver) AuthStarted(string) {
	SessionAuthInflight.Inc()
}

func (SessionObserver) AuthFinished(operation, result string, seconds float64) {
	SessionAuthInflight.Dec()
	SessionAuthTotal.WithLabelValues(operation, result).Inc()
	SessionAuthDuration.WithLabelValues(operation).Observe(seconds)
}
