// Package metrics регистрирует метрики Prometheus приложения.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry реестр метрик приложения.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	downloadsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloads_recorded_total",
			Help: "Recorded exercise downloads by tier.",
		},
		[]string{"tier"},
	)

	downloadRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "download_limit_rejections_total",
			Help: "Downloads rejected because the monthly quota was exhausted.",
		},
	)

	consentChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_changes_total",
			Help: "Consent changes by purpose and action.",
		},
		[]string{"consent_type", "action"},
	)

	retentionProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_records_processed_total",
			Help: "Records deleted or anonymized by retention policies.",
		},
		[]string{"policy", "action"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Incoming webhook events by source and result.",
		},
		[]string{"source", "event", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		downloadsRecorded,
		downloadRejections,
		consentChanges,
		retentionProcessed,
		webhookEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware считает запросы и их длительность по шаблону маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// DownloadRecorded учитывает скачивание. tier: free или premium.
func DownloadRecorded(tier string) {
	downloadsRecorded.WithLabelValues(tier).Inc()
}

// DownloadRejected учитывает отказ из-за исчерпанной квоты.
func DownloadRejected() {
	downloadRejections.Inc()
}

// ConsentChanged учитывает изменение согласия.
func ConsentChanged(consentType, action string) {
	consentChanges.WithLabelValues(consentType, action).Inc()
}

// RetentionProcessed учитывает записи, обработанные политикой хранения.
func RetentionProcessed(policy, action string, n int64) {
	if n <= 0 {
		return
	}
	retentionProcessed.WithLabelValues(policy, action).Add(float64(n))
}

// WebhookEvent учитывает входящее событие вебхука.
func WebhookEvent(source, event, result string) {
	if event == "" {
		event = "unknown"
	}
	webhookEvents.WithLabelValues(source, event, result).Inc()
}
