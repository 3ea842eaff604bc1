package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Component is a catalog part (CPU, GPU, PSU, RAM kit, ...). Pricing lives on InventoryItem.
type Component struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Type         string    `gorm:"column:type;not null"`
	Name         string    `gorm:"column:name;not null"`
	MPN          string    `gorm:"column:mpn;not null"`
	Manufacturer string    `gorm:"column:manufacturer"`
	ImageURL     string    `gorm:"column:image_url"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Component) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
