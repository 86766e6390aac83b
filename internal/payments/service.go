package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/metrics"
	"github.com/baanhub/baanhub-backend/pkg/omise"
)

type paymentRepository interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
	FindByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	FindLatest(ctx context.Context, userID, propertyID uuid.UUID) (*models.PaymentRecord, error)
	FindSuccessful(ctx context.Context, userID, propertyID uuid.UUID) (*models.PaymentRecord, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error)
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type propertiesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

// Provider is the payment gateway surface the service needs.
type Provider interface {
	CreateCharge(ctx context.Context, params omise.ChargeParams) (*omise.Charge, error)
	CreateSource(ctx context.Context, params omise.SourceParams) (*omise.Source, error)
}

// Service exposes charge, source and access operations.
type Service interface {
	CreateCharge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
	CreateSource(ctx context.Context, input SourceInput) (*SourceResult, error)
	ResolveAccess(ctx context.Context, userID, propertyID uuid.UUID) (*AccessResult, error)
	OverrideStatus(ctx context.Context, paymentID string, status enums.PaymentStatus) (*models.PaymentRecord, error)
}

type ServiceParams struct {
	Repo       paymentRepository
	Users      usersRepository
	Properties propertiesRepository
	Provider   Provider
	Policy     Policy
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
}

type service struct {
	repo       paymentRepository
	users      usersRepository
	properties propertiesRepository
	provider   Provider
	policy     Policy
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.Properties == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "properties repository required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if !params.Policy.MinimumAmount.IsPositive() || !params.Policy.PackageThreshold.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment policy amounts must be positive")
	}
	return &service{
		repo:       params.Repo,
		users:      params.Users,
		properties: params.Properties,
		provider:   params.Provider,
		policy:     params.Policy,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) CreateCharge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	if err := s.policy.ValidateAmount(input.Amount); err != nil {
		s.metrics.IncCharge(metrics.OutcomeRejected)
		return nil, err
	}
	if input.PropertyID == uuid.Nil {
		s.metrics.IncCharge(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "propertyId is required")
	}
	if !input.HasPaymentMethod() {
		s.metrics.IncCharge(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "one of token, source or customer is required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":     input.UserID.String(),
		"property_id": input.PropertyID.String(),
	})

	user, err := s.authorize(ctx, input.UserID, s.policy.RequiredRole(input.Amount))
	if err != nil {
		s.metrics.IncCharge(metrics.OutcomeRejected)
		return nil, err
	}

	property, err := s.properties.FindByID(ctx, input.PropertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load property")
	}
	if property == nil {
		s.metrics.IncCharge(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}

	existing, err := s.repo.FindSuccessful(ctx, user.ID, property.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing payment")
	}
	if existing != nil {
		s.logg.Info(s.logg.WithPaymentID(ctx, existing.ID), "charge skipped, property already paid")
		s.metrics.IncCharge(metrics.OutcomeAlreadyPaid)
		return &ChargeResult{AlreadyPaid: true, ChargeID: existing.ID, Status: existing.Status, HasAccess: true}, nil
	}

	amount := s.policy.EffectiveAmount(input.Amount)
	currency := s.policy.Currency(input.Currency)
	metadata := chargeMetadata(input.Metadata, user.ID, property.ID)
	description := input.Description
	if description == "" {
		description = defaultDescription(user.Role, property.Title)
	}

	started := time.Now()
	charge, err := s.provider.CreateCharge(ctx, omise.ChargeParams{
		Amount:      ToMinorUnits(amount),
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
		Card:        input.Token,
		Source:      input.Source,
		Customer:    input.Customer,
		Capture:     input.Capture,
	})
	s.metrics.ObserveProviderCall("create_charge", time.Since(started))
	if err != nil {
		s.metrics.IncCharge(metrics.OutcomeProviderErr)
		s.logg.Error(ctx, "provider rejected charge", err)
		return nil, providerError(err, "create charge")
	}

	ctx = s.logg.WithPaymentID(ctx, charge.ID)
	status := s.parseProviderStatus(ctx, charge.Status)

	record := &models.PaymentRecord{
		ID:               charge.ID,
		UserID:           user.ID,
		PropertyID:       property.ID,
		SourceID:         chargeSourceID(charge, input.Source),
		Amount:           amount,
		AmountMinor:      ToMinorUnits(amount),
		Currency:         currency,
		Status:           status,
		Metadata:         datatypes.JSONMap(metadata),
		ProviderSnapshot: datatypes.JSON(charge.Raw),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateSuccessful) {
			s.metrics.IncCharge(metrics.OutcomeConflict)
			s.logg.Error(ctx, "duplicate successful charge captured, manual refund required", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "property already paid")
		}
		s.metrics.IncCharge(metrics.OutcomeStoreErr)
		s.logg.Error(ctx, "provider charge created but payment record not stored", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment record")
	}

	s.metrics.IncCharge(metrics.OutcomeCreated)
	s.logg.Info(s.logg.WithField(ctx, "status", status), "charge created")
	return &ChargeResult{
		ChargeID:  charge.ID,
		Status:    status,
		Charge:    charge.Raw,
		HasAccess: status.GrantsAccess(),
	}, nil
}

func (s *service) CreateSource(ctx context.Context, input SourceInput) (*SourceResult, error) {
	if err := s.policy.ValidateAmount(input.Amount); err != nil {
		s.metrics.IncSource(metrics.OutcomeRejected)
		return nil, err
	}
	sourceType, err := enums.ParseSourceType(input.Type)
	if err != nil {
		s.metrics.IncSource(metrics.OutcomeRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported source type")
	}

	ctx = s.logg.WithField(ctx, "user_id", input.UserID.String())

	// Packages are charged by card only; sources serve customer purchases.
	if s.policy.RequiredRole(input.Amount) != enums.UserRoleCustomer {
		s.metrics.IncSource(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "amount exceeds the limit for QR payments")
	}
	user, err := s.authorize(ctx, input.UserID, enums.UserRoleCustomer)
	if err != nil {
		s.metrics.IncSource(metrics.OutcomeRejected)
		return nil, err
	}

	var property *models.Property
	if input.PropertyID != nil {
		property, err = s.properties.FindByID(ctx, *input.PropertyID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load property")
		}
		if property == nil {
			s.metrics.IncSource(metrics.OutcomeRejected)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
		}
		ctx = s.logg.WithField(ctx, "property_id", property.ID.String())

		existing, err := s.repo.FindSuccessful(ctx, user.ID, property.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing payment")
		}
		if existing != nil {
			s.logg.Info(s.logg.WithPaymentID(ctx, existing.ID), "source skipped, property already paid")
			s.metrics.IncSource(metrics.OutcomeAlreadyPaid)
			return &SourceResult{AlreadyPaid: true, HasAccess: true}, nil
		}
	}

	amount := s.policy.EffectiveAmount(input.Amount)
	currency := s.policy.Currency(input.Currency)

	started := time.Now()
	source, err := s.provider.CreateSource(ctx, omise.SourceParams{
		Type:        string(sourceType),
		Amount:      ToMinorUnits(amount),
		Currency:    currency,
		Name:        input.Name,
		Email:       input.Email,
		PhoneNumber: input.Phone,
	})
	s.metrics.ObserveProviderCall("create_source", time.Since(started))
	if err != nil {
		s.metrics.IncSource(metrics.OutcomeProviderErr)
		s.logg.Error(ctx, "provider rejected source", err)
		return nil, providerError(err, "create source")
	}

	ctx = s.logg.WithPaymentID(ctx, source.ID)
	result := &SourceResult{
		SourceID:  source.ID,
		Amount:    source.Amount,
		Currency:  source.Currency,
		Flow:      source.Flow,
		ExpiresAt: source.ExpiresAt,
	}
	if code, ok := ExtractQRCode(source); ok {
		result.QRCode = &code
	} else {
		s.logg.Warn(ctx, "source created without a scannable reference")
	}

	if property == nil {
		s.logg.Info(ctx, "source created without property, no payment record stored")
		s.metrics.IncSource(metrics.OutcomeCreated)
		return result, nil
	}

	sourceID := source.ID
	record := &models.PaymentRecord{
		ID:          source.ID,
		UserID:      user.ID,
		PropertyID:  property.ID,
		SourceID:    &sourceID,
		Amount:      amount,
		AmountMinor: ToMinorUnits(amount),
		Currency:    currency,
		Status:      enums.PaymentStatusPending,
		Metadata: datatypes.JSONMap(map[string]any{
			"userId":     user.ID.String(),
			"propertyId": property.ID.String(),
			"sourceType": string(sourceType),
		}),
		ProviderSnapshot: datatypes.JSON(source.Raw),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.metrics.IncSource(metrics.OutcomeStoreErr)
		s.logg.Error(ctx, "provider source created but payment record not stored", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment record")
	}

	s.metrics.IncSource(metrics.OutcomeCreated)
	s.logg.Info(ctx, "source created")
	return result, nil
}

func (s *service) ResolveAccess(ctx context.Context, userID, propertyID uuid.UUID) (*AccessResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if propertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "propertyId is required")
	}

	latest, err := s.repo.FindLatest(ctx, userID, propertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment record")
	}
	if latest == nil {
		return &AccessResult{}, nil
	}
	status := latest.Status
	return &AccessResult{HasAccess: status.GrantsAccess(), PaymentStatus: &status}, nil
}

func (s *service) OverrideStatus(ctx context.Context, paymentID string, status enums.PaymentStatus) (*models.PaymentRecord, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	ctx = s.logg.WithPaymentID(ctx, paymentID)

	record, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
	}

	from := record.Status
	outcome, err := ApplyStatus(ctx, s.repo, record, status, map[string]any(record.Metadata), nil)
	if err != nil {
		if errors.Is(err, ErrDuplicateSuccessful) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "property already paid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
	}
	switch outcome {
	case TransitionRejected:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move payment from %s to %s", from, status))
	case TransitionStale:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment status changed concurrently")
	}

	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"from": from, "to": status}), "payment status overridden")
	return record, nil
}

// authorize loads the caller and checks the role against the amount tier.
func (s *service) authorize(ctx context.Context, userID uuid.UUID, required enums.UserRole) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
	}
	if user.Role != required {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("only %s accounts can make this payment", required))
	}
	return user, nil
}

func (s *service) parseProviderStatus(ctx context.Context, raw string) enums.PaymentStatus {
	status, err := enums.ParsePaymentStatus(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "provider_status", raw), "unknown provider status, storing as pending")
		return enums.PaymentStatusPending
	}
	return status
}

func providerError(err error, op string) error {
	var apiErr *omise.APIError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, apiErr.Message).WithProviderCode(apiErr.Code)
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, op+" failed")
}

func chargeMetadata(in map[string]any, userID, propertyID uuid.UUID) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	out["userId"] = userID.String()
	out["propertyId"] = propertyID.String()
	return out
}

func chargeSourceID(charge *omise.Charge, requested string) *string {
	if charge.Source != nil && charge.Source.ID != "" {
		id := charge.Source.ID
		return &id
	}
	if requested != "" {
		return &requested
	}
	return nil
}

func defaultDescription(role enums.UserRole, title string) string {
	if role == enums.UserRoleAgent {
		return "Agent package: " + title
	}
	return "Contact reveal: " + title
}

