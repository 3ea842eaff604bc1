package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOrderMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.IncTransition("capture_approved", ResultApplied)
	m.IncTransition("capture_approved", ResultApplied)
	m.IncTransition("slip_approved", ResultNoop)
	m.ObserveGateway("execute", 120*time.Millisecond, nil)
	m.ObserveGateway("refund", 80*time.Millisecond, errors.New("declined"))
	m.AddStock(DirectionDecrement, 3)
	m.AddStock(DirectionIncrement, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "order_transitions_total", map[string]string{"event": "capture_approved", "result": ResultApplied}); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transitions=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "inventory_stock_adjustments_total", map[string]string{"direction": DirectionDecrement}); err != nil {
		t.Fatalf("fetch stock: %v", err)
	} else if got != 3 {
		t.Fatalf("expected decrement=3, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "inventory_stock_adjustments_total", map[string]string{"direction": DirectionIncrement}); err == nil {
		t.Fatalf("zero-unit increments should not create a series")
	}
	if got, err := fetchHistogramSum(mfs, "payment_gateway_duration_seconds", map[string]string{"operation": "refund", "outcome": "error"}); err != nil {
		t.Fatalf("fetch gateway: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected gateway sum > 0, got %f", got)
	}
}

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_created")
	m.IncFailed("order_created")
	m.IncDLQ("order_state_changed", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dlq_total", map[string]string{"event_type": "order_state_changed", "reason": "max_attempts"}); err != nil || got != 1 {
		t.Fatalf("expected dlq=1, got %f (%v)", got, err)
	}
}

func TestMaintenanceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMaintenanceMetrics(reg)
	m.ObserveRun("outbox-retention", 50*time.Millisecond, nil)
	m.ObserveRun("outbox-retention", 10*time.Millisecond, errors.New("boom"))
	m.AddOutboxPruned(7)
	m.AddOutboxPruned(0)
	m.SetAwaitingPayment("PENDING", 3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "maintenance_job_runs_total", map[string]string{"job": "outbox-retention", "outcome": "failure"}); err != nil || got != 1 {
		t.Fatalf("expected failure runs=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_rows_pruned_total", nil); err != nil || got != 7 {
		t.Fatalf("expected pruned=7, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "orders_awaiting_payment_stale")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("unexpected awaiting payment gauge: %v", mf)
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var om *OrderMetrics
	om.IncTransition("x", "y")
	om.ObserveGateway("x", time.Second, nil)
	om.AddStock(DirectionDecrement, 1)
	NewOrderMetrics(nil).IncTransition("x", "y")

	var ob *OutboxMetrics
	ob.IncPublished("x")
	NewOutboxMetrics(nil).IncDLQ("x", "y")

	var mm *MaintenanceMetrics
	mm.ObserveRun("x", time.Second, nil)
	NewMaintenanceMetrics(nil).SetAwaitingPayment("x", 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
