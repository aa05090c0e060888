package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abakirov/taskhub/internal/health"
)

var (
	// Auth lifecycle metrics

	OTPIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "otps_issued_total",
		Help:      "Total one-time codes issued, by purpose.",
	}, []string{"purpose"})

	OTPVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "otp_verifications_total",
		Help:      "Total one-time code verification attempts, by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	TokenRotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "token_rotations_total",
		Help:      "Total refresh-token rotations, by outcome.",
	}, []string{"outcome"})

	// Realtime metrics

	WebsocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskhub",
		Name:      "websocket_connections",
		Help:      "Number of live websocket connections.",
	})

	RealtimeEventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "realtime_events_dropped_total",
		Help:      "Events dropped because a connection's send buffer was full.",
	})

	// Reminder metrics

	RemindersSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "reminders_sent_total",
		Help:      "Due-task reminder emails sent.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskhub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskhub",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		OTPIssuedTotal,
		OTPVerificationsTotal,
		TokenRotationsTotal,
		WebsocketConnections,
		RealtimeEventsDroppedTotal,
		RemindersSentTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness and readiness probes on the
// internal metrics port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(result)
}
