package properties

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/internal/repo"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
)

// Repository reads listing rows owned by the listings service.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a property. Used by seeding and tests.
func (r *Repository) Create(ctx context.Context, property *models.Property) error {
	if property == nil {
		return fmt.Errorf("property is required")
	}
	if property.ID == uuid.Nil {
		property.ID = uuid.New()
	}
	return r.DB(ctx).Create(property).Error
}

// FindByID loads a property, returning (nil, nil) when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	ok, err := repo.FirstOrNil(r.DB(ctx).Where("id = ?", id), &property)
	if err != nil || !ok {
		return nil, err
	}
	return &property, nil
}
