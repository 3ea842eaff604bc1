package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/types"
)

// SavedAddress is a buyer's address-book entry.
type SavedAddress struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID     `gorm:"column:user_id;type:uuid;not null;index"`
	Address   types.Address `gorm:"column:address;type:jsonb;serializer:json;not null"`
	IsDefault bool          `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (SavedAddress) TableName() string { return "saved_addresses" }

func (a *SavedAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
