package observability

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "broadcast_engine"
	metricsPath      = "/metrics"
	unmatchedRoute   = "unmatched"
)

// 10ms up to ~20s, past the default 10s delivery timeout.
var deliveryBuckets = prometheus.ExponentialBuckets(0.01, 2, 12)

// Metrics is the dispatcher's private Prometheus registry. A nil *Metrics is
// valid and records nothing, which keeps tests and tools free of wiring.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	broadcastsTotal       *prometheus.CounterVec
	deliveriesTotal       *prometheus.CounterVec
	deliveryFailuresTotal *prometheus.CounterVec
	deliveryDuration      *prometheus.HistogramVec
	deliveriesInflight    *prometheus.GaugeVec
	historyAppendErrors   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: counterVec("http_requests_total",
			"Requests served by the broadcast API, by route template and response code.",
			"method", "path", "status"),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving a broadcast API request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		broadcastsTotal: counterVec("broadcasts_total",
			"Broadcasts that finished fan-out, by event tag.",
			"tag"),
		deliveriesTotal: counterVec("deliveries_total",
			"Settled channel deliveries, one per channel per broadcast.",
			"channel", "status"),
		deliveryFailuresTotal: counterVec("delivery_failures_total",
			"Failed channel deliveries, split into transient, permanent and panic.",
			"channel", "reason"),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_duration_seconds",
			Help:      "Wall time of one channel delivery including rate limiter waits.",
			Buckets:   deliveryBuckets,
		}, []string{"channel"}),
		deliveriesInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_inflight",
			Help:      "Channel deliveries currently waiting on an adapter.",
		}, []string{"channel"}),
		historyAppendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "history_append_errors_total",
			Help:      "Broadcasts whose history record could not be stored.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.broadcastsTotal,
		m.deliveriesTotal,
		m.deliveryFailuresTotal,
		m.deliveryDuration,
		m.deliveriesInflight,
		m.historyAppendErrors,
	)

	return m
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// Handler serves the registry. Without one it falls back to the global
// default so /metrics never 404s.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware counts API requests by route template. Scrapes of the
// metrics endpoint itself are left out.
func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := routePath(c)
		if route != metricsPath {
			m.recordHTTPRequest(c.Method(), route, statusFromResult(c, err), time.Since(start))
		}
		return err
	}
}

func (m *Metrics) IncBroadcast(tag string) {
	if m != nil {
		m.broadcastsTotal.WithLabelValues(normalizeLabel(tag)).Inc()
	}
}

// IncDelivery records one settled outcome; status is the outcome's wire name
// such as "delivered" or "not_configured".
func (m *Metrics) IncDelivery(channelID string, status string) {
	if m != nil {
		m.deliveriesTotal.WithLabelValues(normalizeLabel(channelID), normalizeLabel(status)).Inc()
	}
}

func (m *Metrics) IncDeliveryFailed(channelID string, reason string) {
	if m != nil {
		m.deliveryFailuresTotal.WithLabelValues(normalizeLabel(channelID), normalizeLabel(reason)).Inc()
	}
}

// ObserveDeliveryDuration clamps negative durations from a stepped clock to 0.
func (m *Metrics) ObserveDeliveryDuration(channelID string, took time.Duration) {
	if m == nil {
		return
	}
	m.deliveryDuration.WithLabelValues(normalizeLabel(channelID)).Observe(max(took, 0).Seconds())
}

func (m *Metrics) IncInFlight(channelID string) {
	if m != nil {
		m.deliveriesInflight.WithLabelValues(normalizeLabel(channelID)).Inc()
	}
}

func (m *Metrics) DecInFlight(channelID string) {
	if m != nil {
		m.deliveriesInflight.WithLabelValues(normalizeLabel(channelID)).Dec()
	}
}

func (m *Metrics) IncHistoryAppendError() {
	if m != nil {
		m.historyAppendErrors.Inc()
	}
}

func (m *Metrics) recordHTTPRequest(method string, route string, status int, took time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	if route = strings.TrimSpace(route); route == "" {
		route = unmatchedRoute
	}

	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// routePath labels by template ("/v1/channels/:id") rather than raw URL so
// channel ids do not explode the series count.
func routePath(c *fiber.Ctx) string {
	if c == nil || c.Route() == nil {
		return unmatchedRoute
	}
	if path := strings.TrimSpace(c.Route().Path); path != "" {
		return path
	}
	return unmatchedRoute
}

// statusFromResult reports what the client will see: a handler error has not
// been through the error handler yet, so its code is read off the error.
func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	if c == nil {
		return fiber.StatusOK
	}
	if status := c.Response().StatusCode(); status != 0 {
		return status
	}
	return fiber.StatusOK
}

// normalizeLabel lowercases and trims; blank becomes "unknown".
func normalizeLabel(value string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return "unknown"
}
