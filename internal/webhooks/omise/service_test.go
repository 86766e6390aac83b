package omisewebhook

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/migrate"
	"github.com/baanhub/baanhub-backend/pkg/omise"
)

func newTestService(t *testing.T) (*Service, *payments.Repository) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "webhooks.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(context.Background(), conn))

	repo := payments.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, repo
}

func seedRecord(t *testing.T, repo *payments.Repository, id string, status enums.PaymentStatus, sourceID *string) *models.PaymentRecord {
	t.Helper()
	record := &models.PaymentRecord{
		ID:          id,
		UserID:      uuid.New(),
		PropertyID:  uuid.New(),
		SourceID:    sourceID,
		Amount:      decimal.NewFromInt(20),
		AmountMinor: 2000,
		Currency:    "THB",
		Status:      status,
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}

func chargeEvent(chargeID, status string) *omise.Event {
	return &omise.Event{
		Object: "event",
		ID:     "evnt_" + chargeID,
		Key:    "charge.complete",
		Data:   []byte(`{"object":"charge","id":"` + chargeID + `","status":"` + status + `","metadata":{"note":"webhook"}}`),
	}
}

func TestHandleEventAppliesTransition(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedRecord(t, repo, "chrg_1", enums.PaymentStatusPending, nil)

	outcome, err := svc.HandleEvent(ctx, chargeEvent("chrg_1", "successful"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	record, err := repo.FindByID(ctx, "chrg_1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccessful, record.Status)
	assert.Equal(t, "webhook", record.Metadata["note"])
	assert.Contains(t, string(record.ProviderSnapshot), `"status":"successful"`)
}

func TestHandleEventNeverRegressesTerminalStatus(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedRecord(t, repo, "chrg_1", enums.PaymentStatusSuccessful, nil)

	outcome, err := svc.HandleEvent(ctx, chargeEvent("chrg_1", "pending"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	outcome, err = svc.HandleEvent(ctx, chargeEvent("chrg_1", "successful"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, outcome)

	record, err := repo.FindByID(ctx, "chrg_1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccessful, record.Status)
}

func TestHandleEventFallsBackToSourceRecord(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	sourceID := "src_qr_1"
	seedRecord(t, repo, sourceID, enums.PaymentStatusPending, &sourceID)

	event := &omise.Event{
		ID:   "evnt_2",
		Key:  "charge.complete",
		Data: []byte(`{"object":"charge","id":"chrg_from_qr","status":"expired","source":{"object":"source","id":"src_qr_1"}}`),
	}
	outcome, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	record, err := repo.FindBySourceID(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, record.Status)
}

func TestHandleEventAcknowledgesNoops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	outcome, err := svc.HandleEvent(ctx, &omise.Event{ID: "evnt_r", Data: []byte(`{"object":"refund","id":"rfnd_1"}`)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	outcome, err = svc.HandleEvent(ctx, chargeEvent("chrg_unknown", "successful"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, outcome)

	outcome, err = svc.HandleEvent(ctx, chargeEvent("chrg_unknown", "reversed"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	outcome, err = svc.HandleEvent(ctx, &omise.Event{ID: "evnt_bad", Data: []byte(`{"object":"charge"}`)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestHandleEventDuplicateSuccessfulIsAcknowledged(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	first := seedRecord(t, repo, "chrg_a", enums.PaymentStatusSuccessful, nil)
	second := &models.PaymentRecord{
		ID:          "chrg_b",
		UserID:      first.UserID,
		PropertyID:  first.PropertyID,
		Amount:      decimal.NewFromInt(20),
		AmountMinor: 2000,
		Currency:    "THB",
		Status:      enums.PaymentStatusPending,
	}
	require.NoError(t, repo.Create(ctx, second))

	outcome, err := svc.HandleEvent(ctx, chargeEvent("chrg_b", "successful"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	record, err := repo.FindByID(ctx, "chrg_b")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, record.Status)
}

type failingRepo struct{}

func (failingRepo) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	return nil, errors.New("db down")
}

func (failingRepo) FindBySourceID(ctx context.Context, sourceID string) (*models.PaymentRecord, error) {
	return nil, errors.New("db down")
}

func (failingRepo) UpdateStatus(ctx context.Context, update payments.StatusUpdate) (bool, error) {
	return false, errors.New("db down")
}

func TestHandleEventPersistenceErrorIsReturned(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Repo:   failingRepo{},
		Logger: logger.New(logger.Options{Output: io.Discard}),
	})
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), chargeEvent("chrg_1", "successful"))
	require.Error(t, err)
}
