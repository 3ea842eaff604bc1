package orders

import (
	"github.com/angelmondragon/computers-backend/pkg/enums"
)

// AnyStatus is the wildcard row consulted only when no exact (status, event) row exists.
const AnyStatus enums.OrderStatus = "*"

// StockEffect is the ledger side effect attached to a transition.
type StockEffect int

const (
	StockNone StockEffect = iota
	StockDecrement
	StockIncrement
)

// Rule is one row of the transition table.
type Rule struct {
	// Payments lists the payment statuses the order must be in. Empty accepts any.
	Payments []enums.PaymentStatus
	// Method restricts the row to one payment method.
	Method    enums.PaymentMethod
	OwnerOnly bool
	// To is the resulting order status. Empty keeps the current one unless Targets applies.
	To        enums.OrderStatus
	ToPayment enums.PaymentStatus
	// Targets is set for caller-chosen destinations (status_moved, admin_override).
	Targets []enums.OrderStatus
	Stock   StockEffect
}

type transitionKey struct {
	from  enums.OrderStatus
	event enums.OrderEvent
}

var (
	paymentPendingOnly = []enums.PaymentStatus{enums.PaymentStatusPending}
	paymentUncaptured  = []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}
	paymentCaptured    = []enums.PaymentStatus{enums.PaymentStatusCompleted}
	paymentNotComplete = []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusPendingApproval, enums.PaymentStatusFailed}
	paymentAwaiting    = []enums.PaymentStatus{enums.PaymentStatusPendingApproval}
)

var transitionTable = buildTable()

func buildTable() map[transitionKey]Rule {
	t := map[transitionKey]Rule{}
	add := func(event enums.OrderEvent, rule Rule, from ...enums.OrderStatus) {
		for _, status := range from {
			t[transitionKey{from: status, event: event}] = rule
		}
	}

	add(enums.OrderEventPaymentCreated, Rule{
		Payments: paymentPendingOnly,
		Method:   enums.PaymentMethodPayPal,
	}, enums.OrderStatusPendingPayment)

	add(enums.OrderEventPaymentRetried, Rule{
		Payments:  paymentUncaptured,
		Method:    enums.PaymentMethodPayPal,
		OwnerOnly: true,
		ToPayment: enums.PaymentStatusPending,
	}, enums.OrderStatusPendingPayment)

	add(enums.OrderEventCaptureApproved, Rule{
		Payments:  paymentPendingOnly,
		Method:    enums.PaymentMethodPayPal,
		To:        enums.OrderStatusProcessing,
		ToPayment: enums.PaymentStatusCompleted,
		Stock:     StockDecrement,
	}, enums.OrderStatusPendingPayment)

	add(enums.OrderEventCaptureDeclined, Rule{
		Payments:  paymentPendingOnly,
		Method:    enums.PaymentMethodPayPal,
		ToPayment: enums.PaymentStatusFailed,
	}, enums.OrderStatusPendingPayment)

	add(enums.OrderEventSlipSubmitted, Rule{
		Payments:  paymentPendingOnly,
		Method:    enums.PaymentMethodBankTransfer,
		OwnerOnly: true,
		To:        enums.OrderStatusPendingPayment,
		ToPayment: enums.PaymentStatusPendingApproval,
	}, enums.OrderStatusPendingPayment, enums.OrderStatusRejectedSlip)

	add(enums.OrderEventSlipApproved, Rule{
		Payments:  paymentAwaiting,
		To:        enums.OrderStatusProcessing,
		ToPayment: enums.PaymentStatusCompleted,
		Stock:     StockDecrement,
	}, AnyStatus)

	add(enums.OrderEventSlipRejected, Rule{
		Payments:  paymentAwaiting,
		To:        enums.OrderStatusRejectedSlip,
		ToPayment: enums.PaymentStatusPending,
	}, AnyStatus)

	add(enums.OrderEventSlipApprovalReverted, Rule{
		Payments:  paymentCaptured,
		Method:    enums.PaymentMethodBankTransfer,
		To:        enums.OrderStatusRejectedSlip,
		ToPayment: enums.PaymentStatusPending,
		Stock:     StockIncrement,
	}, enums.OrderStatusProcessing)

	add(enums.OrderEventCancelled, Rule{
		Payments:  paymentUncaptured,
		OwnerOnly: true,
		To:        enums.OrderStatusCancelled,
		ToPayment: enums.PaymentStatusFailed,
	}, enums.OrderStatusPendingPayment, enums.OrderStatusRejectedSlip)

	add(enums.OrderEventShipped, Rule{
		To: enums.OrderStatusShipped,
	}, enums.OrderStatusProcessing, enums.OrderStatusReturnedToSender)

	add(enums.OrderEventShippingAmended, Rule{}, enums.OrderStatusShipped, enums.OrderStatusCompleted)

	add(enums.OrderEventStatusMoved, Rule{
		Targets: []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusDeliveryFailed, enums.OrderStatusReturnedToSender},
	}, enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDeliveryFailed)

	add(enums.OrderEventStatusMoved, Rule{
		Targets: []enums.OrderStatus{enums.OrderStatusProcessing},
	}, enums.OrderStatusReturnedToSender)

	add(enums.OrderEventStatusMoved, Rule{
		Payments:  paymentNotComplete,
		Targets:   []enums.OrderStatus{enums.OrderStatusCancelled},
		ToPayment: enums.PaymentStatusFailed,
	}, enums.OrderStatusPendingPayment, enums.OrderStatusRejectedSlip)

	add(enums.OrderEventAdminOverride, Rule{
		Targets: []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusProcessing},
	}, enums.OrderStatusRefundRejected)

	add(enums.OrderEventRefundRequested, Rule{
		Payments:  paymentCaptured,
		OwnerOnly: true,
		To:        enums.OrderStatusRefundRequested,
	}, enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusCompleted)

	add(enums.OrderEventRefundApproved, Rule{
		To:        enums.OrderStatusRefunded,
		ToPayment: enums.PaymentStatusRefunded,
		Stock:     StockIncrement,
	}, enums.OrderStatusRefundRequested)

	add(enums.OrderEventRefundRejected, Rule{
		To: enums.OrderStatusRefundRejected,
	}, enums.OrderStatusRefundRequested)

	add(enums.OrderEventRefundForced, Rule{
		Payments:  paymentCaptured,
		To:        enums.OrderStatusRefunded,
		ToPayment: enums.PaymentStatusRefunded,
		Stock:     StockIncrement,
	}, enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusCompleted,
		enums.OrderStatusDeliveryFailed, enums.OrderStatusReturnedToSender, enums.OrderStatusRefundRejected)

	return t
}

// Lookup finds the row for (status, event), falling back to the wildcard row.
func Lookup(status enums.OrderStatus, event enums.OrderEvent) (Rule, bool) {
	if rule, ok := transitionTable[transitionKey{from: status, event: event}]; ok {
		return rule, true
	}
	rule, ok := transitionTable[transitionKey{from: AnyStatus, event: event}]
	return rule, ok
}

// AllowsPayment reports whether the payment status satisfies the row.
func (r Rule) AllowsPayment(status enums.PaymentStatus) bool {
	if len(r.Payments) == 0 {
		return true
	}
	for _, allowed := range r.Payments {
		if allowed == status {
			return true
		}
	}
	return false
}

// TargetsFrom returns the caller-selectable destinations, excluding the current status.
func (r Rule) TargetsFrom(current enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, len(r.Targets))
	for _, target := range r.Targets {
		if target != current {
			out = append(out, target)
		}
	}
	return out
}

// ValidNextStatuses is the union of status_moved and admin_override targets for the order's state.
func ValidNextStatuses(status enums.OrderStatus, payment enums.PaymentStatus) []enums.OrderStatus {
	var out []enums.OrderStatus
	for _, event := range []enums.OrderEvent{enums.OrderEventStatusMoved, enums.OrderEventAdminOverride} {
		rule, ok := Lookup(status, event)
		if !ok || !rule.AllowsPayment(payment) {
			continue
		}
		out = append(out, rule.TargetsFrom(status)...)
	}
	return out
}

// ManualEvent picks the event a manual status update maps to.
func ManualEvent(from enums.OrderStatus) enums.OrderEvent {
	if from == enums.OrderStatusRefundRejected {
		return enums.OrderEventAdminOverride
	}
	return enums.OrderEventStatusMoved
}
