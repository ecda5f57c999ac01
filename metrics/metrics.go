package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EmailsProcessed counts finished invocations by terminal status and
	// failure kind ("none" for sent records).
	EmailsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_mailer_emails_processed_total",
		Help: "Total number of queued email records processed",
	}, []string{"status", "kind"})
	SMTPSendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reminder_mailer_smtp_send_seconds",
		Help:    "Duration of SMTP submissions",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})
	WriteBackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminder_mailer_write_back_failures_total",
		Help: "Total number of status write-backs that could not be stored",
	})
	TriggerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_mailer_trigger_events_total",
		Help: "Total number of creation events handled by the dispatcher",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(EmailsProcessed)
	prometheus.MustRegister(SMTPSendDuration)
	prometheus.MustRegister(WriteBackFailures)
	prometheus.MustRegister(TriggerEvents)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
