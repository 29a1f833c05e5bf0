package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	reviewTotal    *prometheus.CounterVec
	reviewDuration *prometheus.HistogramVec
	reviewInFlight prometheus.Gauge
	eventLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reviewTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "review_generation_total",
			Help:      "Total pre-generated voice reviews by status.",
		},
		[]string{"service", "status"},
	)
	reviewDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "review_generation_duration_seconds",
			Help:      "Voice review generation duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	reviewInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "review_generation_in_flight",
			Help:      "Number of in-flight review generations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between snapshot save and review generation start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(reviewTotal, reviewDuration, reviewInFlight, eventLag)

	return &WorkerMetrics{
		registry:       registry,
		reviewTotal:    reviewTotal,
		reviewDuration: reviewDuration,
		reviewInFlight: reviewInFlight,
		eventLag:       eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReview() {
	m.reviewInFlight.Inc()
}

func (m *WorkerMetrics) FinishReview(service string, duration time.Duration, err error) {
	m.reviewInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reviewTotal.WithLabelValues(service, status).Inc()
	m.reviewDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
