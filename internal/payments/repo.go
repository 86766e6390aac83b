package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/internal/repo"
	dbpkg "github.com/baanhub/baanhub-backend/pkg/db"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
)

// ErrDuplicateSuccessful means the store refused a second successful payment
// for the same user and property.
var ErrDuplicateSuccessful = errors.New("successful payment already recorded for user and property")

// StatusUpdate moves a record from From to To. The update only lands when the
// row still holds From.
type StatusUpdate struct {
	ID       string
	From     enums.PaymentStatus
	To       enums.PaymentStatus
	Metadata map[string]any
	Snapshot []byte
}

// Repository persists PaymentRecord rows.
type Repository struct {
	repo.Base
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db), now: time.Now}
}

// Create inserts a record. A clash with the successful-payment index returns
// ErrDuplicateSuccessful.
func (r *Repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	if record == nil {
		return fmt.Errorf("payment record is required")
	}
	if record.ID == "" {
		return fmt.Errorf("payment record id is required")
	}
	err := r.DB(ctx).Create(record).Error
	if err != nil && record.Status == enums.PaymentStatusSuccessful && dbpkg.IsUniqueViolation(err, models.SuccessfulPaymentIndex) {
		return ErrDuplicateSuccessful
	}
	return err
}

// FindByID returns (nil, nil) when no record matches.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	return r.first(r.DB(ctx).Where("id = ?", id))
}

// FindBySourceID finds the record persisted when the source was created.
func (r *Repository) FindBySourceID(ctx context.Context, sourceID string) (*models.PaymentRecord, error) {
	return r.first(r.DB(ctx).Where("source_id = ?", sourceID).Order("created_at DESC"))
}

// FindLatest returns the most recently created record for the pair, any status.
func (r *Repository) FindLatest(ctx context.Context, userID, propertyID uuid.UUID) (*models.PaymentRecord, error) {
	return r.first(r.DB(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Order("created_at DESC").
		Order("id DESC"))
}

// FindSuccessful returns the successful record for the pair, if any.
func (r *Repository) FindSuccessful(ctx context.Context, userID, propertyID uuid.UUID) (*models.PaymentRecord, error) {
	return r.first(r.DB(ctx).
		Where("user_id = ? AND property_id = ? AND status = ?", userID, propertyID, enums.PaymentStatusSuccessful))
}

// UpdateStatus applies a compare-and-swap status change and reports whether a
// row was updated.
func (r *Repository) UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	if update.ID == "" {
		return false, fmt.Errorf("payment record id is required")
	}

	values := map[string]any{
		"status":     update.To,
		"updated_at": r.now().UTC(),
	}
	if update.Metadata != nil {
		values["metadata"] = datatypes.JSONMap(update.Metadata)
	}
	if len(update.Snapshot) > 0 {
		values["provider_snapshot"] = datatypes.JSON(update.Snapshot)
	}

	result := r.DB(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND status = ?", update.ID, update.From).
		Updates(values)
	if result.Error != nil {
		if update.To == enums.PaymentStatusSuccessful && dbpkg.IsUniqueViolation(result.Error, models.SuccessfulPaymentIndex) {
			return false, ErrDuplicateSuccessful
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) first(query *gorm.DB) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	ok, err := repo.FirstOrNil(query, &record)
	if err != nil || !ok {
		return nil, err
	}
	return &record, nil
}
