package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfintake",
			Name:      "files_total",
			Help:      "Submitted files by outcome (added, failed, cancelled)",
		},
		[]string{"outcome"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfintake",
			Name:      "validation_failures_total",
			Help:      "Validation failures by kind",
		},
		[]string{"kind"},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfintake",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a submitted batch, including time waiting on page selection",
			Buckets:   prometheus.DefBuckets,
		},
	)

	selectionWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfintake",
			Name:      "selection_wait_seconds",
			Help:      "Time a page selection request stayed outstanding, by resolution",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"resolution"},
	)

	worklistItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pdfintake",
			Name:      "worklist_items",
			Help:      "Items currently in the worklist by status",
		},
		[]string{"status"},
	)

	snapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfintake",
			Name:      "snapshots_published_total",
			Help:      "Snapshots emitted by the publication bridge",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfintake",
			Name:      "notifications_total",
			Help:      "Notifications raised by kind",
		},
		[]string{"kind"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfintake",
			Name:      "events_published_total",
			Help:      "Redis events by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(filesTotal, validationFailures, batchDuration, selectionWait, worklistItems, snapshotsTotal, notificationsTotal, eventsTotal)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncFile(outcome string)             { filesTotal.WithLabelValues(outcome).Inc() }
func IncValidationFailure(kind string)   { validationFailures.WithLabelValues(kind).Inc() }
func ObserveBatch(dur time.Duration)     { batchDuration.Observe(dur.Seconds()) }
func IncSnapshot()                       { snapshotsTotal.Inc() }
func IncNotification(kind string)        { notificationsTotal.WithLabelValues(kind).Inc() }
func IncEvent(channel, result string)    { eventsTotal.WithLabelValues(channel, result).Inc() }

func ObserveSelection(resolution string, dur time.Duration) {
	selectionWait.WithLabelValues(resolution).Observe(dur.Seconds())
}

func SetWorklist(success, failed int) {
	worklistItems.WithLabelValues("success").Set(float64(success))
	worklistItems.WithLabelValues("error").Set(float64(failed))
}
