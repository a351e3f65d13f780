package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashlink",
			Name:      "exchange_total",
			Help:      "Client exchanges by request kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashlink",
			Name:      "exchange_duration_seconds",
			Help:      "Time from accepted request to completion.",
			Buckets:   []float64{.05, .1, .2, .3, .5, 1, 2, 5, 10, 15},
		},
		[]string{"kind", "outcome"},
	)
	inboundDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashlink",
			Name:      "inbound_discarded_total",
			Help:      "Inbound messages dropped without reaching a handler.",
		},
		[]string{"reason"},
	)
	companionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashlink",
			Name:      "companion_requests_total",
			Help:      "Requests answered by the companion simulator.",
		},
		[]string{"kind", "result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			exchanges,
			exchangeDuration,
			inboundDiscarded,
			companionRequests,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordExchange counts one finished client exchange. Rejected requests pass
// a zero duration and are not observed in the histogram.
func RecordExchange(kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	exchanges.WithLabelValues(kind, outcome).Inc()
	if duration > 0 {
		exchangeDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	}
}

func RecordInboundDiscarded(reason string) {
	RegisterMetrics()
	inboundDiscarded.WithLabelValues(reason).Inc()
}

func RecordCompanionRequest(kind, result string) {
	RegisterMetrics()
	companionRequests.WithLabelValues(kind, result).Inc()
}
