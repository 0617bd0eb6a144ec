package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics bundles the HTTP and checkout counters. Constructed once in
// main and injected; tests run without it.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec
	Webhooks  *prometheus.CounterVec
}

func New(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "elegantlavie",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "elegantlavie",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "elegantlavie",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by channel and result.",
	}, []string{"channel", "result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "elegantlavie",
		Subsystem: service,
		Name:      "webhook_events_total",
		Help:      "Processor webhook deliveries by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(requests, latency, checkouts, webhooks)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, Checkouts: checkouts, Webhooks: webhooks}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
