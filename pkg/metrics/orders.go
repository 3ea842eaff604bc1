package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultApplied  = "applied"
	ResultNoop     = "noop"
	ResultRejected = "rejected"

	DirectionDecrement = "decrement"
	DirectionIncrement = "increment"
)

// OrderMetrics records order lifecycle activity.
type OrderMetrics struct {
	transitions     *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	stockAdjustment *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order lifecycle events by outcome.",
	}, []string{"event", "result"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_duration_seconds",
		Help:    "Latency of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	stockAdjustment := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_adjustments_total",
		Help: "Units moved by the inventory ledger.",
	}, []string{"direction"})
	reg.MustRegister(transitions, gatewayLatency, stockAdjustment)
	return &OrderMetrics{
		transitions:     transitions,
		gatewayLatency:  gatewayLatency,
		stockAdjustment: stockAdjustment,
	}
}

// IncTransition counts one handled lifecycle event.
func (m *OrderMetrics) IncTransition(event, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}

// ObserveGateway records the duration of one payment gateway call.
func (m *OrderMetrics) ObserveGateway(operation string, d time.Duration, err error) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), outcome).Observe(d.Seconds())
}

// AddStock counts units decremented or restored.
func (m *OrderMetrics) AddStock(direction string, units int) {
	if m == nil || m.stockAdjustment == nil || units <= 0 {
		return
	}
	m.stockAdjustment.WithLabelValues(normalizeLabel(direction)).Add(float64(units))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
