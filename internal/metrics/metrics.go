package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_messages_handled_total",
			Help: "Total number of messages handled by an agent, by outcome (count)",
		},
		[]string{"agent", "type", "status"},
	)

	MessagesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_messages_rejected_total",
			Help: "Total number of messages rejected at the broker boundary (count)",
		},
		[]string{"agent", "field"},
	)

	MessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_messages_published_total",
			Help: "Total number of messages published (count)",
		},
		[]string{"exchange", "type", "status"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_pipeline_duration_ms",
			Help:    "Duration of one pipeline run in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"agent", "status"},
	)

	EmailBatchLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_email_batch_lines_total",
			Help: "Total number of email batch lines by extraction outcome (count)",
		},
		[]string{"stage"},
	)

	AlertsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_alerts_sent_total",
			Help: "Total number of operator alerts, by trigger and outcome (count)",
		},
		[]string{"trigger", "status"},
	)

	CheckerCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_smtp_checker_cycles_total",
			Help: "Total number of SMTP health check cycles, by outcome (count)",
		},
		[]string{"status"},
	)

	MailboxSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_mailbox_size",
			Help: "Number of emails waiting in the monitored mailbox (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hermes_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Calling it more
// than once is harmless.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesHandledTotal,
			MessagesRejectedTotal,
			MessagesPublishedTotal,
			PipelineDuration,
			EmailBatchLinesTotal,
			AlertsSentTotal,
			CheckerCyclesTotal,
			MailboxSize,
			CircuitBreakerState,
		)
	})
}
