package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_dash_requests_total",
			Help: "Backend calls issued by the client, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_dash_request_duration_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"op"},
	)

	BusyActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insight_dash_busy_active",
			Help: "Number of busy indicators currently held by a long-running operation",
		},
	)

	ChatEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_dash_chat_entries_total",
			Help: "Transcript entries appended, by role and kind",
		},
		[]string{"role", "kind"},
	)
)

// ObserveRequest records one backend call.
func ObserveRequest(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(op, outcome).Inc()
	RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
