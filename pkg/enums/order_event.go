package enums

import "fmt"

// OrderEvent names an input to the order state machine.
type OrderEvent string

const (
	OrderEventPaymentCreated       OrderEvent = "payment_created"
	OrderEventPaymentRetried       OrderEvent = "payment_retried"
	OrderEventCaptureApproved      OrderEvent = "capture_approved"
	OrderEventCaptureDeclined      OrderEvent = "capture_declined"
	OrderEventSlipSubmitted        OrderEvent = "slip_submitted"
	OrderEventSlipApproved         OrderEvent = "slip_approved"
	OrderEventSlipRejected         OrderEvent = "slip_rejected"
	OrderEventSlipApprovalReverted OrderEvent = "slip_approval_reverted"
	OrderEventCancelled            OrderEvent = "cancelled"
	OrderEventShipped              OrderEvent = "shipped"
	OrderEventShippingAmended      OrderEvent = "shipping_amended"
	OrderEventStatusMoved          OrderEvent = "status_moved"
	OrderEventAdminOverride        OrderEvent = "admin_override"
	OrderEventRefundRequested      OrderEvent = "refund_requested"
	OrderEventRefundApproved       OrderEvent = "refund_approved"
	OrderEventRefundRejected       OrderEvent = "refund_rejected"
	OrderEventRefundForced         OrderEvent = "refund_forced"
)

var validOrderEvents = []OrderEvent{
	OrderEventPaymentCreated,
	OrderEventPaymentRetried,
	OrderEventCaptureApproved,
	OrderEventCaptureDeclined,
	OrderEventSlipSubmitted,
	OrderEventSlipApproved,
	OrderEventSlipRejected,
	OrderEventSlipApprovalReverted,
	OrderEventCancelled,
	OrderEventShipped,
	OrderEventShippingAmended,
	OrderEventStatusMoved,
	OrderEventAdminOverride,
	OrderEventRefundRequested,
	OrderEventRefundApproved,
	OrderEventRefundRejected,
	OrderEventRefundForced,
}

// OrderEvents returns every known event in declaration order.
func OrderEvents() []OrderEvent {
	out := make([]OrderEvent, len(validOrderEvents))
	copy(out, validOrderEvents)
	return out
}

// String implements fmt.Stringer.
func (e OrderEvent) String() string {
	return string(e)
}

// IsValid reports whether the value is a known OrderEvent.
func (e OrderEvent) IsValid() bool {
	for _, candidate := range validOrderEvents {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOrderEvent converts raw input into an OrderEvent.
func ParseOrderEvent(value string) (OrderEvent, error) {
	for _, candidate := range validOrderEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order event %q", value)
}
