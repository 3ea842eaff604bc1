package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/computers-backend/pkg/enums"
)

// OrderCreatedEvent announces a freshly persisted checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Currency      string              `json:"currency"`
	LineCount     int                 `json:"line_count"`
}

// OrderStateChangedEvent is emitted for every applied lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	Event             enums.OrderEvent    `json:"event"`
	FromOrderStatus   enums.OrderStatus   `json:"from_order_status"`
	ToOrderStatus     enums.OrderStatus   `json:"to_order_status"`
	FromPaymentStatus enums.PaymentStatus `json:"from_payment_status"`
	ToPaymentStatus   enums.PaymentStatus `json:"to_payment_status"`
	StockDelta        map[string]int      `json:"stock_delta,omitempty"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

// OrderOverrideAppliedEvent flags an administrative move out of REFUND_REJECTED.
type OrderOverrideAppliedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	FromOrderStatus enums.OrderStatus `json:"from_order_status"`
	ToOrderStatus   enums.OrderStatus `json:"to_order_status"`
	AdminID         *uuid.UUID        `json:"admin_id,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}
