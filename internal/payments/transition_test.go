package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
)

type recordingWriter struct {
	updates []StatusUpdate
	result  bool
	err     error
}

func (w *recordingWriter) UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	w.updates = append(w.updates, update)
	return w.result, w.err
}

func TestApplyStatus(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		from    enums.PaymentStatus
		to      enums.PaymentStatus
		result  bool
		want    TransitionOutcome
		written bool
	}{
		{name: "pending to successful", from: enums.PaymentStatusPending, to: enums.PaymentStatusSuccessful, result: true, want: TransitionApplied, written: true},
		{name: "pending to expired", from: enums.PaymentStatusPending, to: enums.PaymentStatusExpired, result: true, want: TransitionApplied, written: true},
		{name: "same status refresh", from: enums.PaymentStatusSuccessful, to: enums.PaymentStatusSuccessful, result: true, want: TransitionRefreshed, written: true},
		{name: "successful never regresses", from: enums.PaymentStatusSuccessful, to: enums.PaymentStatusPending, want: TransitionRejected},
		{name: "failed to successful rejected", from: enums.PaymentStatusFailed, to: enums.PaymentStatusSuccessful, want: TransitionRejected},
		{name: "unknown status rejected", from: enums.PaymentStatusPending, to: enums.PaymentStatus("reversed"), want: TransitionRejected},
		{name: "lost race", from: enums.PaymentStatusPending, to: enums.PaymentStatusFailed, result: false, want: TransitionStale, written: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writer := &recordingWriter{result: tc.result}
			record := &models.PaymentRecord{ID: "chrg_1", Status: tc.from}

			outcome, err := ApplyStatus(ctx, writer, record, tc.to, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome)

			if !tc.written {
				assert.Empty(t, writer.updates)
				assert.Equal(t, tc.from, record.Status)
				return
			}
			require.Len(t, writer.updates, 1)
			assert.Equal(t, tc.from, writer.updates[0].From)
			assert.Equal(t, tc.to, writer.updates[0].To)
		})
	}
}

func TestApplyStatusPropagatesStoreErrors(t *testing.T) {
	writer := &recordingWriter{err: errors.New("db down")}
	record := &models.PaymentRecord{ID: "chrg_1", Status: enums.PaymentStatusPending}

	_, err := ApplyStatus(context.Background(), writer, record, enums.PaymentStatusSuccessful, nil, nil)
	require.Error(t, err)
	assert.Equal(t, enums.PaymentStatusPending, record.Status)

	_, err = ApplyStatus(context.Background(), writer, nil, enums.PaymentStatusSuccessful, nil, nil)
	require.Error(t, err)
}
