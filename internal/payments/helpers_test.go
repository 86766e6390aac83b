package payments

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/internal/properties"
	"github.com/baanhub/baanhub-backend/internal/users"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/migrate"
	"github.com/baanhub/baanhub-backend/pkg/omise"
)

type stubProvider struct {
	charge      *omise.Charge
	chargeErr   error
	source      *omise.Source
	sourceErr   error
	chargeCalls []omise.ChargeParams
	sourceCalls []omise.SourceParams
}

func (s *stubProvider) CreateCharge(ctx context.Context, params omise.ChargeParams) (*omise.Charge, error) {
	s.chargeCalls = append(s.chargeCalls, params)
	if s.chargeErr != nil {
		return nil, s.chargeErr
	}
	return s.charge, nil
}

func (s *stubProvider) CreateSource(ctx context.Context, params omise.SourceParams) (*omise.Source, error) {
	s.sourceCalls = append(s.sourceCalls, params)
	if s.sourceErr != nil {
		return nil, s.sourceErr
	}
	return s.source, nil
}

type fixture struct {
	db         *gorm.DB
	repo       *Repository
	users      *users.Repository
	properties *properties.Repository
	provider   *stubProvider
	svc        Service
	customer   *models.User
	agent      *models.User
	property   *models.Property
}

func testPolicy() Policy {
	return Policy{
		MinimumAmount:    decimal.NewFromInt(20),
		PackageThreshold: decimal.NewFromInt(50),
		MaximumAmount:    decimal.NewFromInt(1000000),
		DefaultCurrency:  "THB",
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payments.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(context.Background(), conn))
	return conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conn := newTestDB(t)

	f := &fixture{
		db:         conn,
		repo:       NewRepository(conn),
		users:      users.NewRepository(conn),
		properties: properties.NewRepository(conn),
		provider:   &stubProvider{},
	}

	f.customer = &models.User{FullName: "Customer", Role: enums.UserRoleCustomer, IsActive: true}
	f.agent = &models.User{FullName: "Agent", Role: enums.UserRoleAgent, IsActive: true}
	require.NoError(t, f.users.Create(ctx, f.customer))
	require.NoError(t, f.users.Create(ctx, f.agent))

	f.property = &models.Property{AgentID: f.agent.ID, Title: "Sukhumvit condo"}
	require.NoError(t, f.properties.Create(ctx, f.property))

	svc, err := NewService(ServiceParams{
		Repo:       f.repo,
		Users:      f.users,
		Properties: f.properties,
		Provider:   f.provider,
		Policy:     testPolicy(),
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) chargeInput(userID uuid.UUID, amount int64) ChargeInput {
	return ChargeInput{
		UserID:     userID,
		PropertyID: f.property.ID,
		Amount:     decimal.NewFromInt(amount),
		Source:     "src_test",
		Capture:    true,
	}
}

func providerCharge(id, status string) *omise.Charge {
	raw := []byte(`{"object":"charge","id":"` + id + `","status":"` + status + `","amount":2000,"currency":"thb"}`)
	return &omise.Charge{Object: "charge", ID: id, Status: status, Amount: 2000, Currency: "thb", Raw: raw}
}
