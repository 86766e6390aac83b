package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/baanhub/baanhub-backend/pkg/enums"
)

// SuccessfulPaymentIndex is the partial unique index allowing one successful
// payment per (user_id, property_id).
const SuccessfulPaymentIndex = "ux_payment_records_successful"

// PaymentRecord tracks one provider charge or source raised for a property.
// ID is the provider identifier (chrg_..., src_...) and never changes.
type PaymentRecord struct {
	ID               string              `gorm:"column:id;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:idx_payment_records_user_property,priority:1"`
	PropertyID       uuid.UUID           `gorm:"column:property_id;type:uuid;not null;index:idx_payment_records_user_property,priority:2"`
	SourceID         *string             `gorm:"column:source_id;index"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountMinor      int64               `gorm:"column:amount_minor;not null"`
	Currency         string              `gorm:"column:currency;not null;default:'THB'"`
	Status           enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Metadata         datatypes.JSONMap   `gorm:"column:metadata"`
	ProviderSnapshot datatypes.JSON      `gorm:"column:provider_snapshot"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
