package payments

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baanhub/baanhub-backend/api/middleware"
	"github.com/baanhub/baanhub-backend/api/responses"
	"github.com/baanhub/baanhub-backend/api/validators"
	paymentsvc "github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
	"github.com/baanhub/baanhub-backend/pkg/logger"
)

// amount accepts `20`, `20.5` and `"20.50"`; decimal handles both encodings.
type chargeRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Description string           `json:"description,omitempty" validate:"max=255"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Token       string           `json:"token,omitempty"`
	Source      string           `json:"source,omitempty"`
	Customer    string           `json:"customer,omitempty"`
	Capture     *bool            `json:"capture,omitempty"`
	PropertyID  string           `json:"propertyId" validate:"required,uuid"`
}

type chargeResponse struct {
	Success     bool            `json:"success"`
	AlreadyPaid bool            `json:"alreadyPaid,omitempty"`
	Charge      json.RawMessage `json:"charge"`
	HasAccess   bool            `json:"hasAccess"`
}

type sourceRequest struct {
	Amount     *decimal.Decimal `json:"amount" validate:"required"`
	Currency   string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Type       string           `json:"type,omitempty"`
	Name       string           `json:"name,omitempty" validate:"max=255"`
	Email      string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string           `json:"phone,omitempty" validate:"max=32"`
	PropertyID string           `json:"propertyId,omitempty" validate:"omitempty,uuid"`
}

type sourceMeta struct {
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Flow      string  `json:"flow"`
	ExpiresAt *string `json:"expires_at"`
}

type sourceResponse struct {
	Success  bool       `json:"success"`
	SourceID string     `json:"sourceId"`
	QRCode   *string    `json:"qrCode"`
	Meta     sourceMeta `json:"meta"`
}

type alreadyPaidResponse struct {
	Success     bool `json:"success"`
	AlreadyPaid bool `json:"alreadyPaid"`
	HasAccess   bool `json:"hasAccess"`
}

type accessResponse struct {
	Success       bool    `json:"success"`
	HasAccess     bool    `json:"hasAccess"`
	PaymentStatus *string `json:"paymentStatus"`
}

type overrideRequest struct {
	Status string `json:"status" validate:"required,oneof=pending successful failed expired"`
}

type paymentResponse struct {
	ID         string    `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	PropertyID uuid.UUID `json:"propertyId"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type overrideResponse struct {
	Success bool            `json:"success"`
	Payment paymentResponse `json:"payment"`
}

// CreateCharge creates a provider charge for the caller and the requested property.
func CreateCharge(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload chargeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		capture := true
		if payload.Capture != nil {
			capture = *payload.Capture
		}

		result, err := svc.CreateCharge(r.Context(), paymentsvc.ChargeInput{
			UserID:      userID,
			PropertyID:  uuid.MustParse(payload.PropertyID),
			Amount:      *payload.Amount,
			Currency:    strings.TrimSpace(payload.Currency),
			Description: validators.SanitizeString(payload.Description, 255),
			Metadata:    payload.Metadata,
			Token:       strings.TrimSpace(payload.Token),
			Source:      strings.TrimSpace(payload.Source),
			Customer:    strings.TrimSpace(payload.Customer),
			Capture:     capture,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.AlreadyPaid {
			responses.WriteSuccess(w, chargeResponse{Success: true, AlreadyPaid: true, Charge: nil, HasAccess: true})
			return
		}
		responses.WriteSuccess(w, chargeResponse{Success: true, Charge: result.Charge, HasAccess: result.HasAccess})
	}
}

// CreateSource creates a QR-capable provider source for a customer purchase.
func CreateSource(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sourceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paymentsvc.SourceInput{
			UserID:   userID,
			Amount:   *payload.Amount,
			Currency: strings.TrimSpace(payload.Currency),
			Type:     strings.ToLower(strings.TrimSpace(payload.Type)),
			Name:     validators.SanitizeString(payload.Name, 255),
			Email:    strings.TrimSpace(payload.Email),
			Phone:    validators.SanitizeString(payload.Phone, 32),
		}
		if payload.PropertyID != "" {
			propertyID := uuid.MustParse(payload.PropertyID)
			input.PropertyID = &propertyID
		}

		result, err := svc.CreateSource(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.AlreadyPaid {
			responses.WriteSuccess(w, alreadyPaidResponse{Success: true, AlreadyPaid: true, HasAccess: result.HasAccess})
			return
		}

		responses.WriteSuccess(w, sourceResponse{
			Success:  true,
			SourceID: result.SourceID,
			QRCode:   result.QRCode,
			Meta: sourceMeta{
				Amount:    result.Amount,
				Currency:  result.Currency,
				Flow:      result.Flow,
				ExpiresAt: result.ExpiresAt,
			},
		})
	}
}

// AccessStatus reports whether the caller may see the agent contact of a property.
func AccessStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		propertyID, err := validators.ParseQueryUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ResolveAccess(r.Context(), userID, propertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := accessResponse{Success: true, HasAccess: result.HasAccess}
		if result.PaymentStatus != nil {
			status := result.PaymentStatus.String()
			resp.PaymentStatus = &status
		}
		responses.WriteSuccess(w, resp)
	}
}

// OverrideStatus forces a payment status through the transition table. Only
// mounted outside production.
func OverrideStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.OverrideStatus(r.Context(), paymentID, enums.PaymentStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, overrideResponse{Success: true, Payment: newPaymentResponse(record)})
	}
}

func newPaymentResponse(record *models.PaymentRecord) paymentResponse {
	if record == nil {
		return paymentResponse{}
	}
	return paymentResponse{
		ID:         record.ID,
		UserID:     record.UserID,
		PropertyID: record.PropertyID,
		Amount:     record.Amount.StringFixed(2),
		Currency:   record.Currency,
		Status:     record.Status.String(),
		UpdatedAt:  record.UpdatedAt,
	}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
