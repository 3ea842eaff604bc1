package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

// Order is the root aggregate created by checkout and mutated only by the lifecycle engine.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Email           string                 `gorm:"column:email;not null"`
	ShippingAddress types.Address          `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Currency        string                 `gorm:"column:currency;not null"`
	SubtotalAmount  decimal.Decimal        `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	TaxAmount       decimal.Decimal        `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderStatus     enums.OrderStatus      `gorm:"column:order_status;type:text;not null;index"`
	PaymentStatus   enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;index"`
	PaymentDetails  types.PaymentDetails   `gorm:"column:payment_details;type:jsonb;serializer:json;not null"`
	ShippingDetails *types.ShippingDetails `gorm:"column:shipping_details;type:jsonb;serializer:json"`
	StockCommitted  bool                   `gorm:"column:stock_committed;not null;default:false"`
	Version         int                    `gorm:"column:version;not null;default:1"`
	LineItems       []OrderLineItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}
