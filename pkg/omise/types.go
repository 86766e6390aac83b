package omise

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go/operations"
)

// ChargeParams is the subset of the Omise create-charge request we send.
// Exactly one of Card, Source or Customer must be set.
type ChargeParams struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]any
	Card        string
	Source      string
	Customer    string
	Capture     bool
}

func (p ChargeParams) validate() error {
	if p.Amount <= 0 {
		return errors.New("charge amount must be positive")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("charge currency is required")
	}
	if p.Card == "" && p.Source == "" && p.Customer == "" {
		return errors.New("charge requires a card token, source or customer")
	}
	return nil
}

func (p ChargeParams) operation() *operations.CreateCharge {
	return &operations.CreateCharge{
		Amount:      p.Amount,
		Currency:    strings.ToLower(p.Currency),
		Description: p.Description,
		Metadata:    p.Metadata,
		Card:        p.Card,
		Source:      p.Source,
		Customer:    p.Customer,
		DontCapture: !p.Capture,
	}
}

// SourceParams is the subset of the Omise create-source request we send.
type SourceParams struct {
	Type        string
	Amount      int64
	Currency    string
	Name        string
	Email       string
	PhoneNumber string
}

func (p SourceParams) validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("source type is required")
	}
	if p.Amount <= 0 {
		return errors.New("source amount must be positive")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("source currency is required")
	}
	return nil
}

func (p SourceParams) operation() *operations.CreateSource {
	return &operations.CreateSource{
		Type:        p.Type,
		Amount:      p.Amount,
		Currency:    strings.ToLower(p.Currency),
		Name:        p.Name,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
	}
}

// Charge is the typed view of an Omise charge. Raw keeps the full provider
// object for snapshots and API responses.
type Charge struct {
	Object         string         `json:"object"`
	ID             string         `json:"id"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Status         string         `json:"status"`
	Paid           bool           `json:"paid"`
	Description    *string        `json:"description"`
	Metadata       map[string]any `json:"metadata"`
	Source         *Source        `json:"source"`
	FailureCode    *string        `json:"failure_code"`
	FailureMessage *string        `json:"failure_message"`
	AuthorizeURI   string         `json:"authorize_uri"`
	ExpiresAt      *string        `json:"expires_at"`

	Raw json.RawMessage `json:"-"`
}

// Source is the typed-but-partial view of an Omise source. QR data moves around
// between payment types, so every nested field is optional.
type Source struct {
	Object        string         `json:"object"`
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Flow          string         `json:"flow"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	ChargeStatus  string         `json:"charge_status"`
	ExpiresAt     *string        `json:"expires_at"`
	ScannableCode *ScannableCode `json:"scannable_code"`
	References    *References    `json:"references"`

	Raw json.RawMessage `json:"-"`
}

// ScannableCode holds the QR barcode attached to offline sources.
type ScannableCode struct {
	Object string    `json:"object"`
	Type   string    `json:"type"`
	Value  string    `json:"value"`
	Image  *Document `json:"image"`
}

// Document is an Omise-hosted file.
type Document struct {
	Object      string `json:"object"`
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URI         string `json:"uri"`
	DownloadURI string `json:"download_uri"`
}

// References carries textual payment references for offline flows.
type References struct {
	ReferenceNumber1 string `json:"reference_number_1"`
	ReferenceNumber2 string `json:"reference_number_2"`
	Barcode          string `json:"barcode"`
}

// APIError is the Omise error object, lifted out of the SDK error type.
type APIError struct {
	StatusCode int    `json:"-"`
	Object     string `json:"object"`
	Location   string `json:"location"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("omise %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// TransportError wraps network failures talking to Omise.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("omise %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
