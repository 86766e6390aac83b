package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
)

type sampleBody struct {
	Type  string `json:"type" validate:"omitempty,oneof=promptpay wechat"`
	Email string `json:"email" validate:"required,email"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"promptpay","email":"buyer@baanhub.co"}`))
	var body sampleBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "promptpay", body.Type)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"paypal"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be one of promptpay wechat", details["type"])
	assert.Equal(t, "is required", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","extra":1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseQueryUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?propertyId=6f1c2c8e-3c1b-4a55-9d4a-0a5f5b1f2d11", nil)
	id, err := ParseQueryUUID(req, "propertyId")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2c8e-3c1b-4a55-9d4a-0a5f5b1f2d11", id.String())

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "propertyId")
	require.Error(t, err)
	assert.Equal(t, "propertyId is required", pkgerrors.As(err).Message())

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?propertyId=nope", nil), "propertyId")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "condo", SanitizeString("  condo  ", 0))
	assert.Equal(t, "con", SanitizeString("condo", 3))
}
