// Package metrics provides Prometheus metrics for the lan-share server.
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

// Registry holds every lan-share metric.
var Registry = prometheus.NewRegistry()

var (
	httpRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	filesUploaded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_files_uploaded_total",
			Help: "Total number of files accepted by uploads",
		},
	)

	filesDeleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_files_deleted_total",
			Help: "Total number of files deleted",
		},
	)

	downloadsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_downloads_total",
			Help: "Total number of download attempts",
		},
		[]string{"status"},
	)

	metadataSaveFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_metadata_save_failures_total",
			Help: "Metadata document writes that failed",
		},
	)

	sharedFiles = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lanshare_shared_files",
			Help: "Number of files in the last listing",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequest records an HTTP request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload records files accepted by one upload.
func RecordUpload(count int) {
	filesUploaded.Add(float64(count))
}

// RecordDelete records a deleted file.
func RecordDelete() {
	filesDeleted.Inc()
}

// RecordDownload records a download attempt by outcome.
func RecordDownload(status string) {
	downloadsTotal.WithLabelValues(status).Inc()
}

// RecordMetadataSaveFailure records a failed metadata write.
func RecordMetadataSaveFailure() {
	metadataSaveFailures.Inc()
}

// SetSharedFiles sets the shared files gauge.
func SetSharedFiles(n int) {
	sharedFiles.Set(float64(n))
}
