package payments

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baanhub/baanhub-backend/pkg/enums"
)

// ChargeInput is a validated create-charge request.
type ChargeInput struct {
	UserID      uuid.UUID
	PropertyID  uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]any
	Token       string
	Source      string
	Customer    string
	Capture     bool
}

// HasPaymentMethod reports whether a token, source or customer was supplied.
func (in ChargeInput) HasPaymentMethod() bool {
	return in.Token != "" || in.Source != "" || in.Customer != ""
}

// ChargeResult is returned by CreateCharge. Charge is the raw provider object
// and is nil when the user had already paid.
type ChargeResult struct {
	AlreadyPaid bool
	ChargeID    string
	Status      enums.PaymentStatus
	Charge      json.RawMessage
	HasAccess   bool
}

// SourceInput is a validated create-source request. PropertyID is optional;
// when present a pending record is stored for the source.
type SourceInput struct {
	UserID     uuid.UUID
	PropertyID *uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Type       string
	Name       string
	Email      string
	Phone      string
}

// SourceResult carries the QR reference and the provider's source summary.
// When the property is already paid only AlreadyPaid and HasAccess are set.
type SourceResult struct {
	AlreadyPaid bool
	HasAccess   bool

	SourceID  string
	QRCode    *string
	Amount    int64
	Currency  string
	Flow      string
	ExpiresAt *string
}

// AccessResult answers whether a user may see the agent contact of a property.
type AccessResult struct {
	HasAccess     bool
	PaymentStatus *enums.PaymentStatus
}
