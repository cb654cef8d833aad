package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "platzreife"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Portal HTTP requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Calls to the script backend by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_seconds",
			Help:      "Latency of script backend calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"action"},
	)

	slotSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_loads_total",
			Help:      "Slot listings served by source (live or fallback) and reason.",
		},
		[]string{"source", "reason"},
	)

	editRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edit_rollbacks_total",
			Help:      "Optimistic admin edits reverted after the backend rejected them.",
		},
		[]string{"field"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, backendCalls, backendLatency, slotSource, editRollbacks)
	})
}

// IncHTTP counts a served request.
func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// ObserveBackend records one backend call.
func ObserveBackend(action, outcome string, seconds float64) {
	backendCalls.WithLabelValues(action, outcome).Inc()
	backendLatency.WithLabelValues(action).Observe(seconds)
}

// IncSlotSource counts which source served a slot listing.
func IncSlotSource(source, reason string) {
	slotSource.WithLabelValues(source, reason).Inc()
}

// IncRollback counts a reverted optimistic edit.
func IncRollback(field string) {
	editRollbacks.WithLabelValues(field).Inc()
}
