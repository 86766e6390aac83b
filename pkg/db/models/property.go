package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is owned by the listings service; payments only read it.
type Property struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentID   uuid.UUID `gorm:"column:agent_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
