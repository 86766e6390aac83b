package omisewebhook

import (
	"context"
	"errors"

	"github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/omise"
)

// Outcome summarises what a delivery did; every outcome is acknowledged.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeRejected  Outcome = "rejected"
	OutcomeStale     Outcome = "stale"
	OutcomeConflict  Outcome = "conflict"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	FindBySourceID(ctx context.Context, sourceID string) (*models.PaymentRecord, error)
	UpdateStatus(ctx context.Context, update payments.StatusUpdate) (bool, error)
}

type ServiceParams struct {
	Repo   paymentRepository
	Logger *logger.Logger
}

// Service reconciles local payment records with verified Omise events.
type Service struct {
	repo paymentRepository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// HandleEvent applies a verified event. Only persistence failures are returned
// so the caller can answer non-2xx and let the provider retry.
func (s *Service) HandleEvent(ctx context.Context, event *omise.Event) (Outcome, error) {
	if event == nil {
		return OutcomeIgnored, nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_key": event.Key})

	if object := event.DataObject(); object != "charge" {
		s.logg.Debug(s.logg.WithField(ctx, "data_object", object), "webhook event ignored")
		return OutcomeIgnored, nil
	}

	charge, err := event.Charge()
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "decode_error", err.Error()), "webhook charge payload unusable")
		return OutcomeIgnored, nil
	}
	ctx = s.logg.WithField(ctx, "charge_id", charge.ID)

	status, err := enums.ParsePaymentStatus(charge.Status)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "provider_status", charge.Status), "webhook charge status not tracked")
		return OutcomeRejected, nil
	}

	record, err := s.findRecord(ctx, charge)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment record")
	}
	if record == nil {
		s.logg.Warn(ctx, "no payment record for webhook charge")
		return OutcomeUnmatched, nil
	}
	ctx = s.logg.WithPaymentID(ctx, record.ID)

	from := record.Status
	transition, err := payments.ApplyStatus(ctx, s.repo, record, status, charge.Metadata, charge.Raw)
	if err != nil {
		if errors.Is(err, payments.ErrDuplicateSuccessful) {
			s.logg.Error(ctx, "second successful charge for user and property, manual refund required", err)
			return OutcomeConflict, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"from": from, "to": status})
	switch transition {
	case payments.TransitionApplied:
		s.logg.Info(ctx, "payment status updated")
		return OutcomeApplied, nil
	case payments.TransitionRefreshed:
		s.logg.Debug(ctx, "payment snapshot refreshed")
		return OutcomeRefreshed, nil
	case payments.TransitionStale:
		s.logg.Warn(ctx, "payment status changed concurrently, event skipped")
		return OutcomeStale, nil
	default:
		s.logg.Warn(ctx, "payment status transition rejected")
		return OutcomeRejected, nil
	}
}

// findRecord matches by charge id, then by the source the charge was raised
// against (records stored at source creation).
func (s *Service) findRecord(ctx context.Context, charge *omise.Charge) (*models.PaymentRecord, error) {
	record, err := s.repo.FindByID(ctx, charge.ID)
	if err != nil || record != nil {
		return record, err
	}
	if charge.Source == nil || charge.Source.ID == "" {
		return nil, nil
	}
	return s.repo.FindBySourceID(ctx, charge.Source.ID)
}
