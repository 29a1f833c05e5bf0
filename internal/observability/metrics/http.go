package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

const namespace = "ride"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	importItemsTotal    *prometheus.CounterVec
	importItemDuration  *prometheus.HistogramVec
	upstreamRetryTotal  *prometheus.CounterVec
	breakerStateChanges *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	importItemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "items_total",
			Help:      "Total processed import items by final status.",
		},
		[]string{"service", "status"},
	)
	importItemDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "item_duration_seconds",
			Help:      "Import item processing duration in seconds, extraction included.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	upstreamRetryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total retries of upstream calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerStateChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_state_changes_total",
			Help:      "Circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "state"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		importItemsTotal,
		importItemDuration,
		upstreamRetryTotal,
		breakerStateChanges,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		service:             service,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		importItemsTotal:    importItemsTotal,
		importItemDuration:  importItemDuration,
		upstreamRetryTotal:  upstreamRetryTotal,
		breakerStateChanges: breakerStateChanges,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses ids so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/images/"):
		return "/v1/images/{key}"
	case strings.HasPrefix(path, "/v1/imports/") && strings.HasSuffix(path, "/save"):
		return "/v1/imports/{id}/save"
	case strings.HasPrefix(path, "/v1/imports/"):
		return "/v1/imports/{id}"
	case path == "/v1/snapshots/prepare":
		return path
	case strings.HasPrefix(path, "/v1/snapshots/") && strings.HasSuffix(path, "/comparison"):
		return "/v1/snapshots/{id}/comparison"
	case strings.HasPrefix(path, "/v1/snapshots/") && strings.HasSuffix(path, "/review"):
		return "/v1/snapshots/{id}/review"
	case strings.HasPrefix(path, "/v1/snapshots/"):
		return "/v1/snapshots/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveImport(status domain.ImportStatus, duration time.Duration) {
	label := string(status)
	if label == "" {
		label = "unknown"
	}
	m.importItemsTotal.WithLabelValues(m.service, label).Inc()
	m.importItemDuration.WithLabelValues(m.service, label).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RetryAttempt(operation string) {
	m.upstreamRetryTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *HTTPServerMetrics) BreakerStateChanged(operation, state string) {
	m.breakerStateChanges.WithLabelValues(m.service, operation, state).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
