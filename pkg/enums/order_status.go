package enums

import "fmt"

// OrderStatus tracks the fulfillment/administrative stage of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment   OrderStatus = "PENDING_PAYMENT"
	OrderStatusRejectedSlip     OrderStatus = "REJECTED_SLIP"
	OrderStatusProcessing       OrderStatus = "PROCESSING"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDeliveryFailed   OrderStatus = "DELIVERY_FAILED"
	OrderStatusReturnedToSender OrderStatus = "RETURNED_TO_SENDER"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusRefundRequested  OrderStatus = "REFUND_REQUESTED"
	OrderStatusRefunded         OrderStatus = "REFUNDED"
	OrderStatusRefundRejected   OrderStatus = "REFUND_REJECTED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusRejectedSlip,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDeliveryFailed,
	OrderStatusReturnedToSender,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefundRequested,
	OrderStatusRefunded,
	OrderStatusRefundRejected,
}

// OrderStatuses returns every known order status in declaration order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCancelled || o == OrderStatusRefunded
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
