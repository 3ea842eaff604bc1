package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem tracks on-hand quantity and list price per component.
type InventoryItem struct {
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  int             `gorm:"column:quantity;not null;default:0;check:chk_inventory_items_quantity_nonnegative,quantity >= 0"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
