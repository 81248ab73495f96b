package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the billing subsystem.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	generationRuns     *prometheus.CounterVec
	generationDuration prometheus.Histogram
	paymentsGenerated  prometheus.Counter
	paymentsSkipped    prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_generation_runs_total",
		Help: "Payment generation runs by result",
	}, []string{"result"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_generation_duration_seconds",
		Help:    "Duration of payment generation runs",
		Buckets: prometheus.DefBuckets,
	})

	paymentsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_payments_generated_total",
		Help: "Payment records created by the generator",
	})

	paymentsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_payments_skipped_total",
		Help: "Enrollments skipped because a payment already existed",
	})

	registry.MustRegister(requestDuration, requestTotal, generationRuns, generationDuration, paymentsGenerated, paymentsSkipped)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationRuns:     generationRuns,
		generationDuration: generationDuration,
		paymentsGenerated:  paymentsGenerated,
		paymentsSkipped:    paymentsSkipped,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveGenerationRun records the outcome of one generation run.
func (s *MetricsService) ObserveGenerationRun(result string, newCount, skipCount int, duration time.Duration) {
	s.generationRuns.WithLabelValues(result).Inc()
	s.generationDuration.Observe(duration.Seconds())
	if newCount > 0 {
		s.paymentsGenerated.Add(float64(newCount))
	}
	if skipCount > 0 {
		s.paymentsSkipped.Add(float64(skipCount))
	}
}
