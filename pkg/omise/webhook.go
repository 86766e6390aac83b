package omise

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Omise-Signature"

var (
	ErrSigningSecretMissing = errors.New("omise webhook secret not configured")
	ErrSignatureMissing     = errors.New("omise signature missing")
	ErrSignatureMismatch    = errors.New("omise signature mismatch")
)

// VerifySignature checks the header against HMAC-SHA256(secret, payload).
// During secret rotation the header may list several comma-separated
// signatures; any match is accepted.
func VerifySignature(payload []byte, secret, header string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrSigningSecretMissing
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrSignatureMissing
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Split(header, ",") {
		provided, err := hex.DecodeString(strings.TrimSpace(candidate))
		if err != nil {
			continue
		}
		if hmac.Equal(expected, provided) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// Sign returns the hex signature for payload. Used by tests and local tooling.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the webhook envelope. Data stays raw until its object type is known.
type Event struct {
	Object    string          `json:"object"`
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type objectProbe struct {
	Object string `json:"object"`
	ID     string `json:"id"`
}

// DataObject reports the object type carried in Data, e.g. "charge".
func (e *Event) DataObject() string {
	if e == nil || len(e.Data) == 0 {
		return ""
	}
	var probe objectProbe
	if err := json.Unmarshal(e.Data, &probe); err != nil {
		return ""
	}
	return probe.Object
}

// Charge decodes Data as a charge, keeping the raw object.
func (e *Event) Charge() (*Charge, error) {
	if e == nil || len(e.Data) == 0 {
		return nil, errors.New("event has no data")
	}
	var charge Charge
	if err := json.Unmarshal(e.Data, &charge); err != nil {
		return nil, err
	}
	if charge.ID == "" {
		return nil, errors.New("charge id missing")
	}
	charge.Raw = append(json.RawMessage(nil), e.Data...)
	return &charge, nil
}
