package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/baanhub/baanhub-backend/pkg/enums"
)

// User is the slice of the marketplace user row this service reads.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Email     *string        `gorm:"column:email"`
	Phone     *string        `gorm:"column:phone"`
	FullName  string         `gorm:"column:full_name;not null;default:''"`
	Role      enums.UserRole `gorm:"column:role;not null;default:'customer'"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
