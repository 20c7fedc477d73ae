package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peregovorka",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "peregovorka",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	httpRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "peregovorka",
			Subsystem: "api",
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected by the per-client limiter.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, httpRateLimited)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncRateLimited() {
	httpRateLimited.Inc()
}
