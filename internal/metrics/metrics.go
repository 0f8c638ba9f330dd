package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"CardScan/internal/models"
)

var (
	EmailsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_enqueued_total",
			Help: "Total emails accepted into the queue",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
		[]string{"reason"},
	)

	Drains = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_drains_total",
			Help: "Drain passes by outcome",
		},
		[]string{"outcome"},
	)

	QueueJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "email_queue_jobs",
			Help: "Jobs held in the in-memory queue by status",
		},
		[]string{"status"},
	)

	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_seconds",
			Help:    "Time spent delivering one email to the relay",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsEnqueued)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(Drains)
	prometheus.MustRegister(QueueJobs)
	prometheus.MustRegister(SendDuration)
}

// ObserveQueue sets the per-status job gauge from a store snapshot.
func ObserveQueue(st models.QueueStatus) {
	QueueJobs.WithLabelValues(string(models.StatusQueued)).Set(float64(st.Queued))
	QueueJobs.WithLabelValues(string(models.StatusSent)).Set(float64(st.Sent))
	QueueJobs.WithLabelValues(string(models.StatusFailed)).Set(float64(st.Failed))
}
