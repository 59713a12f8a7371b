package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Backpressure reasons reported on segd_http_backpressure_total.
const (
	reasonRateLimit = "rate_limit"
	reasonQueue     = "queue"
)

// Op outcomes reported on the per-operation collectors.
const (
	outcomeOK          = "ok"
	outcomeBadRequest  = "bad_request"
	outcomeNotFound    = "model_not_found"
	outcomeBusy        = "busy"
	outcomeUnavailable = "unavailable"
	outcomeTimeout     = "timeout"
	outcomeCanceled    = "canceled"
	outcomeError       = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests.",
		},
		[]string{"method"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Requests rejected with 429, by reason (rate_limit, queue).",
		},
		[]string{"reason"},
	)

	// Segmentation operations: predict, box_segment, auto_segment,
	// auto_segment_adaptive and compute_embedding.
	opRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "op_requests_total",
			Help:      "Segmentation requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "op_duration_seconds",
			Help:      "Time spent in a segmentation operation, from decoded body to response.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"op", "outcome"},
	)

	opRequestBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "segd",
			Subsystem: "http",
			Name:      "op_request_bytes",
			Help:      "Size of decoded segmentation request bodies.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal,
		opRequestsTotal, opDuration, opRequestBytes,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus. Mounted inside a
// chi router the path label is the matched route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		httpInflight.WithLabelValues(method).Inc()
		defer httpInflight.WithLabelValues(method).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		status := strconv.Itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, status).Inc()
		httpRequestDuration.WithLabelValues(path, method, status).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure is called when returning 429 to the client
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

// outcomeForStatus names the result of an operation that answered status.
func outcomeForStatus(status int) string {
	switch status {
	case http.StatusOK:
		return outcomeOK
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return outcomeBadRequest
	case http.StatusNotFound:
		return outcomeNotFound
	case http.StatusTooManyRequests:
		return outcomeBusy
	case http.StatusServiceUnavailable:
		return outcomeUnavailable
	case http.StatusGatewayTimeout:
		return outcomeTimeout
	case statusClientClosed:
		return outcomeCanceled
	default:
		return outcomeError
	}
}

// observeOp records one finished segmentation operation.
func observeOp(op string, status int, start time.Time) {
	outcome := outcomeForStatus(status)
	opRequestsTotal.WithLabelValues(op, outcome).Inc()
	opDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// countingReader counts bytes read from a request body.
type countingReader struct {
	io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}
