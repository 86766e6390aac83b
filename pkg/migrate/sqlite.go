package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/pkg/db/models"
)

const successfulPaymentIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS ` + models.SuccessfulPaymentIndex + `
	ON payment_records (user_id, property_id)
	WHERE status = 'successful'`

// AutoMigrateModels builds the schema from the GORM models. Used for sqlite
// runs and tests, where the Postgres goose migrations do not apply.
func AutoMigrateModels(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	tx := conn.WithContext(ctx)
	if err := tx.AutoMigrate(&models.User{}, &models.Property{}, &models.PaymentRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// GORM tags cannot express partial indexes.
	if err := tx.Exec(successfulPaymentIndexDDL).Error; err != nil {
		return fmt.Errorf("create %s: %w", models.SuccessfulPaymentIndex, err)
	}
	return nil
}
