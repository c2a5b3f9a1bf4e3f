package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipfetch/clipfetch/internal/domain"
	"github.com/clipfetch/clipfetch/internal/service"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	resolutionsTotal    *prometheus.CounterVec
	resolutionDuration  *prometheus.HistogramVec
	cacheLookupsTotal   *prometheus.CounterVec
	queueDepth          *prometheus.GaugeVec
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		resolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolutions_total",
				Help: "Total number of resolution attempts by outcome",
			},
			[]string{"source", "outcome"},
		),
		resolutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resolution_duration_seconds",
				Help:    "Time spent resolving a video on a cache miss",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"source"},
		),
		cacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolution_cache_total",
				Help: "Cache lookups by result",
			},
			[]string{"result"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "email_queue_depth",
				Help: "Current depth of the email queues",
			},
			[]string{"queue"},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Middleware records count and latency for every request. The path label
// uses the chi route pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		m.RecordRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// RecordResolutionEvent maps a resolution event onto the counters
func (m *Metrics) RecordResolutionEvent(event *service.ResolutionEvent) {
	switch event.Type {
	case service.EventCacheHit:
		m.cacheLookupsTotal.WithLabelValues("hit").Inc()
	case service.EventResolved:
		m.cacheLookupsTotal.WithLabelValues("miss").Inc()
		m.resolutionsTotal.WithLabelValues(string(event.Source), "success").Inc()
		m.ObserveResolutionDuration(event.Source, time.Duration(event.DurationMS)*time.Millisecond)
	case service.EventFailed:
		m.resolutionsTotal.WithLabelValues(string(event.Source), "failure").Inc()
	}
}

// ObserveResolutionDuration records how long a cache-miss resolution took
func (m *Metrics) ObserveResolutionDuration(source domain.Source, d time.Duration) {
	m.resolutionDuration.WithLabelValues(string(source)).Observe(d.Seconds())
}

// SetQueueDepth sets the current depth gauge for one queue
func (m *Metrics) SetQueueDepth(queue string, depth float64) {
	m.queueDepth.WithLabelValues(queue).Set(depth)
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	metrics *Metrics
	broker  domain.Broker
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *Metrics, broker domain.Broker) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		broker:  broker,
	}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

// QueueMetrics represents real-time queue metrics
type QueueMetrics struct {
	Main  int64 `json:"main"`
	Retry int64 `json:"retry"`
	Dead  int64 `json:"dead"`
}

// RealtimeMetrics handles real-time metrics requests
// @Summary Real-time metrics
// @Description Get real-time queue depths
// @Tags metrics
// @Produce json
// @Success 200 {object} QueueMetrics
// @Failure 500 {object} Response
// @Router /metrics/realtime [get]
func (h *MetricsHandler) RealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	main, retry, dead, err := h.broker.QueueDepths(ctx)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "METRICS_ERROR", "Failed to get queue depths", nil)
		return
	}

	h.metrics.SetQueueDepth("main", float64(main))
	h.metrics.SetQueueDepth("retry", float64(retry))
	h.metrics.SetQueueDepth("dead", float64(dead))

	JSON(w, http.StatusOK, QueueMetrics{
		Main:  main,
		Retry: retry,
		Dead:  dead,
	})
}
