package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oriyam",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oriyam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oriyam",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	leaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oriyam",
			Subsystem: "leases",
			Name:      "transitions_total",
			Help:      "Total number of lease lifecycle transitions.",
		},
		[]string{"to"},
	)

	leasePayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oriyam",
			Subsystem: "leases",
			Name:      "payments_total",
			Help:      "Total number of recorded lease payments.",
		},
		[]string{"kind"},
	)

	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "oriyam",
			Subsystem: "otp",
			Name:      "issued_total",
			Help:      "Total number of password reset codes issued.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		leaseTransitions,
		leasePayments,
		otpIssued,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordLeaseTransition records a lifecycle transition into the given status.
func RecordLeaseTransition(to string) {
	leaseTransitions.WithLabelValues(to).Inc()
}

// RecordLeasePayment records a settled payment, kind is "deposit" or "month".
func RecordLeasePayment(kind string) {
	leasePayments.WithLabelValues(kind).Inc()
}

// RecordOTPIssued records one issued password reset code.
func RecordOTPIssued() {
	otpIssued.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource identifiers so the metric cardinality
// stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "lands", "leases":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		if len(parts) == 2 {
			return "/" + parts[0] + "/:id"
		}
		return "/" + parts[0] + "/:id/" + parts[2]
	case "admin", "auth":
		if len(parts) >= 2 {
			return "/" + parts[0] + "/" + parts[1]
		}
		return "/" + parts[0]
	default:
		return "/" + parts[0]
	}
}
