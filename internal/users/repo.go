package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/internal/repo"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
)

// Repository reads the marketplace users table. Rows are owned by the
// account service; payments only look them up.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a user. Used by seeding and tests.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.DB(ctx).Create(user).Error
}

// FindByID loads a user, returning (nil, nil) when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	ok, err := repo.FirstOrNil(r.DB(ctx).Where("id = ?", id), &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}
