package properties

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/pkg/db/models"
)

func TestRepositoryFindByID(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "properties.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Property{}))

	ctx := context.Background()
	repo := NewRepository(conn)

	property := &models.Property{AgentID: uuid.New(), Title: "Riverside condo"}
	require.NoError(t, repo.Create(ctx, property))

	found, err := repo.FindByID(ctx, property.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Riverside condo", found.Title)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, repo.Create(ctx, nil))
}
