package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceMetrics records the scheduled maintenance jobs and what they observe.
type MaintenanceMetrics struct {
	duration        *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	outboxPruned    prometheus.Counter
	awaitingPayment *prometheus.GaugeVec
}

func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job executions by outcome.",
	}, []string{"job", "outcome"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_rows_pruned_total",
		Help: "Outbox rows removed by retention.",
	})
	awaiting := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orders_awaiting_payment_stale",
		Help: "Orders past the payment follow-up window, by payment status.",
	}, []string{"payment_status"})
	reg.MustRegister(duration, runs, pruned, awaiting)
	return &MaintenanceMetrics{
		duration:        duration,
		runs:            runs,
		outboxPruned:    pruned,
		awaitingPayment: awaiting,
	}
}

func (m *MaintenanceMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
	m.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func (m *MaintenanceMetrics) AddOutboxPruned(rows int64) {
	if m == nil || m.outboxPruned == nil || rows <= 0 {
		return
	}
	m.outboxPruned.Add(float64(rows))
}

func (m *MaintenanceMetrics) SetAwaitingPayment(paymentStatus string, count int64) {
	if m == nil || m.awaitingPayment == nil {
		return
	}
	m.awaitingPayment.WithLabelValues(normalizeLabel(paymentStatus)).Set(float64(count))
}
