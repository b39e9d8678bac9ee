package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the dispatcher and the admin app.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	messagesSentTotal    *prometheus.CounterVec
	attemptsFailedTotal  *prometheus.CounterVec
	recipientsUnresolved *prometheus.CounterVec
	messageSendDuration  *prometheus.HistogramVec
	retriesTotal         *prometheus.CounterVec
	queuedRecipients     prometheus.Gauge
	remainingRecipients  prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mail_dispatch",
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mail_dispatch",
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mail_dispatch",
				Name:      "messages_sent_total",
				Help:      "Total number of messages delivered successfully.",
			},
			[]string{"transport"},
		),
		attemptsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mail_dispatch",
				Name:      "delivery_attempts_failed_total",
				Help:      "Total number of failed delivery attempts.",
			},
			[]string{"transport", "reason"},
		),
		recipientsUnresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mail_dispatch",
				Name:      "recipients_unresolved_total",
				Help:      "Total number of recipients left unresolved after exhausting retries.",
			},
			[]string{"transport"},
		),
		messageSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mail_dispatch",
				Name:      "message_send_duration_seconds",
				Help:      "Transport send duration in seconds grouped by transport.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"transport"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mail_dispatch",
				Name:      "retries_total",
				Help:      "Total number of delivery retries scheduled.",
			},
			[]string{"transport"},
		),
		queuedRecipients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mail_dispatch",
				Name:      "queued_recipients",
				Help:      "Number of recipients queued by the current run.",
			},
		),
		remainingRecipients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mail_dispatch",
				Name:      "remaining_recipients",
				Help:      "Number of queued recipients not yet processed by the current run.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesSentTotal,
		m.attemptsFailedTotal,
		m.recipientsUnresolved,
		m.messageSendDuration,
		m.retriesTotal,
		m.queuedRecipients,
		m.remainingRecipients,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncMessageSent(transport string) {
	if m == nil {
		return
	}
	m.messagesSentTotal.WithLabelValues(normalizeLabel(transport)).Inc()
}

func (m *Metrics) IncAttemptFailed(transport string, reason string) {
	if m == nil {
		return
	}
	m.attemptsFailedTotal.WithLabelValues(normalizeLabel(transport), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncRecipientUnresolved(transport string) {
	if m == nil {
		return
	}
	m.recipientsUnresolved.WithLabelValues(normalizeLabel(transport)).Inc()
}

func (m *Metrics) ObserveSendDuration(transport string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.messageSendDuration.WithLabelValues(normalizeLabel(transport)).Observe(seconds)
}

func (m *Metrics) IncRetry(transport string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(normalizeLabel(transport)).Inc()
}

func (m *Metrics) SetQueued(count int) {
	if m == nil {
		return
	}
	m.queuedRecipients.Set(float64(count))
	m.remainingRecipients.Set(float64(count))
}

func (m *Metrics) DecRemaining() {
	if m == nil {
		return
	}
	m.remainingRecipients.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
