package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/enums"
)

// OrderTransition is the append-only audit trail of applied state changes.
type OrderTransition struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Event             enums.OrderEvent    `gorm:"column:event;type:text;not null"`
	FromOrderStatus   enums.OrderStatus   `gorm:"column:from_order_status;type:text;not null"`
	ToOrderStatus     enums.OrderStatus   `gorm:"column:to_order_status;type:text;not null"`
	FromPaymentStatus enums.PaymentStatus `gorm:"column:from_payment_status;type:text;not null"`
	ToPaymentStatus   enums.PaymentStatus `gorm:"column:to_payment_status;type:text;not null"`
	ActorID           *uuid.UUID          `gorm:"column:actor_id;type:uuid"`
	ActorRole         enums.ActorRole     `gorm:"column:actor_role;type:text;not null"`
	Reason            *string             `gorm:"column:reason"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (t *OrderTransition) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
