package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

// OrderLineItem freezes one purchased component or build at checkout.
type OrderLineItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Position       int                 `gorm:"column:position;not null"`
	ItemType       enums.LineItemType  `gorm:"column:item_type;type:text;not null"`
	ProductID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Name           string              `gorm:"column:name;not null"`
	MPN            string              `gorm:"column:mpn"`
	ImageURL       string              `gorm:"column:image_url"`
	Quantity       int                 `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ContainedItems types.ItemSnapshots `gorm:"column:contained_items;type:jsonb;serializer:json"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// LineTotal is unit price × quantity.
func (l OrderLineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
