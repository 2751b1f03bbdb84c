package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry           *prometheus.Registry
	documentsProcessed *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	reportsShared      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotes",
			Name:      "documents_processed_total",
			Help:      "Quote documents processed, by outcome.",
		}, []string{"outcome"}),
		processingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quotes",
			Name:      "document_processing_seconds",
			Help:      "Time spent processing one quote document, by stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 240, 480},
		}, []string{"stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotes",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"method", "route", "status"}),
		reportsShared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quotes",
			Name:      "reports_shared_total",
			Help:      "Share links created.",
		}),
	}
	m.registry.MustRegister(m.documentsProcessed, m.processingDuration, m.httpRequests, m.reportsShared)
	return m
}

func (m *Metrics) DocumentProcessed(outcome string) {
	if m == nil {
		return
	}
	m.documentsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.processingDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ReportShared() {
	if m == nil {
		return
	}
	m.reportsShared.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
