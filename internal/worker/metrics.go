package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery counters are package-level: every consumer in the process feeds
// the same series.
var (
	emailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of emails delivered successfully",
	})

	emailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Total number of failed delivery attempts by reason",
	}, []string{"reason"})
)

const (
	failReasonRetried      = "retried"
	failReasonDeadLettered = "dead_lettered"
	failReasonMalformed    = "malformed"
)
