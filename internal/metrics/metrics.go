package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DownloadEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mapstore",
			Name:      "download_events_total",
			Help:      "Count of downloader events processed by the storage engine.",
		},
		[]string{"type"},
	)

	StatusNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mapstore",
			Name:      "status_notifications_total",
			Help:      "Status-changed notifications delivered to subscribers.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mapstore",
			Name:      "queue_depth",
			Help:      "Number of countries in the download queue, including the active one.",
		},
	)

	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mapstore",
			Name:      "active_downloads",
			Help:      "Number of active transfers (0 or 1).",
		},
	)

	ComponentFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mapstore",
			Name:      "component_fetch_duration_seconds",
			Help:      "Duration of individual component fetches.",
		},
		[]string{"component"},
	)
)

// Register registers the mapstore metrics into the default registry.
func Register() {
	prometheus.MustRegister(DownloadEvents, StatusNotifications, QueueDepth, ActiveDownloads, ComponentFetchDuration)
}
