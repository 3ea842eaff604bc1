package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Build is a user-assembled computer configuration sold as a single line.
type Build struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID   `gorm:"column:user_id;type:uuid;not null;index"`
	Name      string      `gorm:"column:name;not null"`
	Parts     []BuildPart `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Build) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BuildPart is one component slot of a build.
type BuildPart struct {
	BuildID     uuid.UUID  `gorm:"column:build_id;type:uuid;primaryKey"`
	ComponentID uuid.UUID  `gorm:"column:component_id;type:uuid;primaryKey"`
	Quantity    int        `gorm:"column:quantity;not null"`
	Component   *Component `gorm:"foreignKey:ComponentID"`
}
