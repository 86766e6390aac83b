package payments

import (
	"context"
	"errors"

	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
)

// TransitionOutcome describes what ApplyStatus did to a record.
type TransitionOutcome string

const (
	// TransitionApplied moved the record to a new status.
	TransitionApplied TransitionOutcome = "applied"
	// TransitionRefreshed kept the status and refreshed metadata/snapshot.
	TransitionRefreshed TransitionOutcome = "refreshed"
	// TransitionRejected means the state machine forbids the move.
	TransitionRejected TransitionOutcome = "rejected"
	// TransitionStale means another writer changed the row first.
	TransitionStale TransitionOutcome = "stale"
)

type statusWriter interface {
	UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error)
}

// ApplyStatus moves record to next when the state machine allows it. The write
// is conditional on the status read into record, so a concurrent terminal
// update is never overwritten. Only persistence failures are returned as errors;
// ErrDuplicateSuccessful is one of them.
func ApplyStatus(ctx context.Context, store statusWriter, record *models.PaymentRecord, next enums.PaymentStatus, metadata map[string]any, snapshot []byte) (TransitionOutcome, error) {
	if record == nil {
		return "", errors.New("payment record is required")
	}
	if !next.IsValid() || !record.Status.CanTransitionTo(next) {
		return TransitionRejected, nil
	}

	updated, err := store.UpdateStatus(ctx, StatusUpdate{
		ID:       record.ID,
		From:     record.Status,
		To:       next,
		Metadata: metadata,
		Snapshot: snapshot,
	})
	if err != nil {
		return "", err
	}
	if !updated {
		return TransitionStale, nil
	}

	outcome := TransitionApplied
	if record.Status == next {
		outcome = TransitionRefreshed
	}
	record.Status = next
	return outcome, nil
}
