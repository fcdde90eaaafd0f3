package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	registerOnce sync.Once

	artifactOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nativebox",
			Subsystem: "artifact",
			Name:      "operations_total",
			Help:      "Repository operations by kind and outcome.",
		},
		[]string{"op", "outcome"},
	)
	artifactDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nativebox",
			Subsystem: "artifact",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	stagedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nativebox",
			Subsystem: "artifact",
			Name:      "staged_bytes_total",
			Help:      "Bytes materialized into staging directories.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nativebox",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nativebox",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(artifactOps, artifactDuration, stagedBytes, httpRequests, httpDuration)
	})
}

// RecordOperation counts one repository operation. op is a short verb such
// as "register", "store", "load" or "close".
func RecordOperation(op string, err error, duration time.Duration) {
	RegisterMetrics()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	artifactOps.WithLabelValues(op, outcome).Inc()
	artifactDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordStagedBytes(n int64) {
	RegisterMetrics()
	if n > 0 {
		stagedBytes.Add(float64(n))
	}
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
