package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики атрибуции и HTTP. Все методы безопасны для nil-получателя,
// чтобы сервисы в тестах можно было собирать без реестра.
type Metrics struct {
	registry *prometheus.Registry

	Clicks            *prometheus.CounterVec
	RedirectFallbacks prometheus.Counter
	Installs          *prometheus.CounterVec
	Events            *prometheus.CounterVec
	SkanPostbacks     prometheus.Counter
	CostRows          *prometheus.CounterVec
	AuthFailures      *prometheus.CounterVec
	KeyUsageDropped   prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New регистрирует метрики в отдельном реестре (вместе с go/process коллекторами)
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Clicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clicks_total",
				Help:      "Clicks recorded on tracking links",
			},
			[]string{"platform"},
		),
		RedirectFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirect_fallbacks_total",
				Help:      "Redirects sent to the fallback URL because the slug is unknown",
			},
		),
		Installs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "installs_total",
				Help:      "Installs by attribution status",
			},
			[]string{"status", "platform"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "In-app events by canonical name and attribution status",
			},
			[]string{"event_name", "status"},
		),
		SkanPostbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skan_postbacks_total",
				Help:      "SKAdNetwork postbacks stored",
			},
		),
		CostRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_rows_total",
				Help:      "Ad cost rows imported by source",
			},
			[]string{"source"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_auth_failures_total",
				Help:      "Rejected ingestion credentials by reason",
			},
			[]string{"reason"},
		),
		KeyUsageDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_usage_dropped_total",
				Help:      "last_used_at updates dropped because the queue was full",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordClick(platform string) {
	if m == nil {
		return
	}
	m.Clicks.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordRedirectFallback() {
	if m == nil {
		return
	}
	m.RedirectFallbacks.Inc()
}

func (m *Metrics) RecordInstall(status, platform string) {
	if m == nil {
		return
	}
	m.Installs.WithLabelValues(status, platform).Inc()
}

func (m *Metrics) RecordEvent(eventName, status string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(eventName, status).Inc()
}

func (m *Metrics) RecordSkanPostback() {
	if m == nil {
		return
	}
	m.SkanPostbacks.Inc()
}

func (m *Metrics) RecordCostRow(source string) {
	if m == nil {
		return
	}
	m.CostRows.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordKeyUsageDropped() {
	if m == nil {
		return
	}
	m.KeyUsageDropped.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
