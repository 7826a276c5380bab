// Package metrics exposes Prometheus collectors for the reminder dispatcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reminders"

// Outcome labels for delivery attempts.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	DeliveryAttempts *prometheus.CounterVec
	DeadLettered     *prometheus.CounterVec
	SaveErrors       prometheus.Counter
	CyclesTotal      prometheus.Counter
	CycleDuration    prometheus.Histogram
	DueReminders     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Reminder delivery attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		DeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_lettered_total",
			Help:      "Reminders given up on after repeated failures",
		}, []string{"channel"}),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_errors_total",
			Help:      "Appointments whose reminder state could not be persisted",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_cycles_total",
			Help:      "Completed dispatch cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_cycle_duration_seconds",
			Help:      "Dispatch cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DueReminders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "due_reminders",
			Help:      "Due reminders found by the last dispatch cycle",
		}),
	}
	reg.MustRegister(m.DeliveryAttempts, m.DeadLettered, m.SaveErrors, m.CyclesTotal, m.CycleDuration, m.DueReminders)
	return m
}

func (m *Metrics) ObserveAttempt(channel, outcome string) {
	if m == nil {
		return
	}
	m.DeliveryAttempts.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) ObserveDeadLetter(channel string) {
	if m == nil {
		return
	}
	m.DeadLettered.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveSaveError() {
	if m == nil {
		return
	}
	m.SaveErrors.Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, due int) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.DueReminders.Set(float64(due))
}
