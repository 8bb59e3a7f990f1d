package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reminder scheduler

	ReminderOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Name:      "reminder_outcomes_total",
		Help:      "Reminder scheduler decisions, by outcome.",
	}, []string{"outcome"})

	GatewayCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantcare",
		Name:      "notification_gateway_call_duration_seconds",
		Help:      "Latency of schedule/cancel calls to the notification gateway.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"op", "result"})

	// Reconciliation

	ResyncPlantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Name:      "resync_plants_total",
		Help:      "Plants processed by reminder reconciliation, by result.",
	}, []string{"result"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantcare",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ReminderOutcomesTotal,
		GatewayCallDuration,
		ResyncPlantsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// Probe is the subset of health.Checker the metrics server exposes.
type Probe interface {
	LivenessHandler() http.Handler
	ReadinessHandler() http.Handler
}

func NewServer(addr string, probe Probe) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", probe.LivenessHandler())
	mux.Handle("/readyz", probe.ReadinessHandler())
	return &http.Server{Addr: addr, Handler: mux}
}
