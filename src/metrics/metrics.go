// Package metrics exposes Prometheus collectors for the engine and its
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dao",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		},
		[]string{"operation", "result"},
	)
	votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dao",
			Subsystem: "engine",
			Name:      "votes_total",
			Help:      "Votes counted, by choice and submission path.",
		},
		[]string{"choice", "path"},
	)
	members = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dao",
			Subsystem: "engine",
			Name:      "members",
			Help:      "Current number of members.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dao",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dao",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operations, votes, members, httpRequests, httpDuration)
	})
}

func RecordOperation(op, result string) {
	RegisterMetrics()
	operations.WithLabelValues(op, result).Inc()
}

func RecordVote(choice string, relayed bool) {
	RegisterMetrics()
	path := "direct"
	if relayed {
		path = "signature"
	}
	votes.WithLabelValues(choice, path).Inc()
}

func SetMembers(n int) {
	RegisterMetrics()
	members.Set(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
