package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baanhub/baanhub-backend/api/middleware"
	paymentsvc "github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/pkg/db/models"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
	"github.com/baanhub/baanhub-backend/pkg/types"
)

var (
	testUserID     = uuid.MustParse("0b6f3f9e-7a51-4b0e-9e38-5c9f2b1a4d01")
	testPropertyID = uuid.MustParse("6f1c2c8e-3c1b-4a55-9d4a-0a5f5b1f2d11")
)

func TestCreateChargeAcceptsStringAmount(t *testing.T) {
	svc := &fakeService{chargeResult: &paymentsvc.ChargeResult{
		ChargeID:  "chrg_test_1",
		Status:    enums.PaymentStatusPending,
		Charge:    json.RawMessage(`{"object":"charge","id":"chrg_test_1","status":"pending"}`),
		HasAccess: false,
	}}
	body := `{"amount":"25.50","source":"src_test","propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateCharge(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"charge":{"object":"charge","id":"chrg_test_1","status":"pending"},"hasAccess":false}`, rec.Body.String())
	require.NotNil(t, svc.chargeInput)
	assert.True(t, decimal.RequireFromString("25.5").Equal(svc.chargeInput.Amount))
	assert.Equal(t, testUserID, svc.chargeInput.UserID)
	assert.Equal(t, testPropertyID, svc.chargeInput.PropertyID)
	assert.True(t, svc.chargeInput.Capture, "capture defaults to true")
}

func TestCreateChargeAcceptsNumericAmountAndCaptureFalse(t *testing.T) {
	svc := &fakeService{chargeResult: &paymentsvc.ChargeResult{Charge: json.RawMessage(`{}`)}}
	body := `{"amount":20,"token":"tokn_test","capture":false,"propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateCharge(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(20).Equal(svc.chargeInput.Amount))
	assert.False(t, svc.chargeInput.Capture)
	assert.Equal(t, "tokn_test", svc.chargeInput.Token)
}

func TestCreateChargeAlreadyPaid(t *testing.T) {
	svc := &fakeService{chargeResult: &paymentsvc.ChargeResult{AlreadyPaid: true, HasAccess: true}}
	body := `{"amount":20,"source":"src_test","propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateCharge(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["alreadyPaid"])
	assert.Nil(t, resp["charge"])
}

func TestCreateChargeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{"source":"src_test","propertyId":"` + testPropertyID.String() + `"}`},
		{"non numeric amount", `{"amount":"twenty","source":"src_test","propertyId":"` + testPropertyID.String() + `"}`},
		{"missing property", `{"amount":20,"source":"src_test"}`},
		{"bad property", `{"amount":20,"source":"src_test","propertyId":"p1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := serve(CreateCharge(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(tt.body))))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.chargeInput)
		})
	}
}

func TestCreateChargeRequiresUser(t *testing.T) {
	svc := &fakeService{}
	body := `{"amount":20,"source":"src_test","propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateCharge(svc, nil), httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateChargeProviderError(t *testing.T) {
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeProvider, "insufficient funds").WithProviderCode("insufficient_fund")}
	body := `{"amount":20,"token":"tokn_test","propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateCharge(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/charges", strings.NewReader(body))))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "insufficient funds", resp.Error)
	assert.Equal(t, "insufficient_fund", resp.OmiseCode)
}

func TestCreateSource(t *testing.T) {
	qr := "https://api.omise.co/charges/chrg_1/documents/docu_1/downloads/qr"
	expires := "2026-10-16T10:00:00Z"
	svc := &fakeService{sourceResult: &paymentsvc.SourceResult{
		SourceID:  "src_test_1",
		QRCode:    &qr,
		Amount:    2000,
		Currency:  "thb",
		Flow:      "offline",
		ExpiresAt: &expires,
	}}
	body := `{"amount":"20","type":"PromptPay","propertyId":"` + testPropertyID.String() + `"}`

	rec := serve(CreateSource(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/sources", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"sourceId":"src_test_1","qrCode":"`+qr+`","meta":{"amount":2000,"currency":"thb","flow":"offline","expires_at":"`+expires+`"}}`, rec.Body.String())
	require.NotNil(t, svc.sourceInput)
	assert.Equal(t, "promptpay", svc.sourceInput.Type)
	require.NotNil(t, svc.sourceInput.PropertyID)
	assert.Equal(t, testPropertyID, *svc.sourceInput.PropertyID)
}

func TestCreateSourceWithoutProperty(t *testing.T) {
	svc := &fakeService{sourceResult: &paymentsvc.SourceResult{SourceID: "src_test_2"}}

	rec := serve(CreateSource(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/sources", strings.NewReader(`{"amount":30}`))))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, svc.sourceInput.PropertyID)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["qrCode"])
}

func TestCreateSourceAlreadyPaid(t *testing.T) {
	svc := &fakeService{sourceResult: &paymentsvc.SourceResult{AlreadyPaid: true, HasAccess: true}}

	body := `{"amount":30,"propertyId":"` + testPropertyID.String() + `"}`
	rec := serve(CreateSource(svc, nil), authed(httptest.NewRequest(http.MethodPost, "/api/v1/payments/sources", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"alreadyPaid":true,"hasAccess":true}`, rec.Body.String())
}

func TestAccessStatus(t *testing.T) {
	successful := enums.PaymentStatusSuccessful
	svc := &fakeService{accessResult: &paymentsvc.AccessResult{HasAccess: true, PaymentStatus: &successful}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/access?propertyId="+testPropertyID.String(), nil)
	rec := serve(AccessStatus(svc, nil), authed(req))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"hasAccess":true,"paymentStatus":"successful"}`, rec.Body.String())
	assert.Equal(t, testPropertyID, svc.accessProperty)
}

func TestAccessStatusWithoutPayment(t *testing.T) {
	svc := &fakeService{accessResult: &paymentsvc.AccessResult{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/access?propertyId="+testPropertyID.String(), nil)
	rec := serve(AccessStatus(svc, nil), authed(req))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"hasAccess":false,"paymentStatus":null}`, rec.Body.String())
}

func TestAccessStatusRequiresProperty(t *testing.T) {
	svc := &fakeService{}
	rec := serve(AccessStatus(svc, nil), authed(httptest.NewRequest(http.MethodGet, "/api/v1/payments/access", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideStatus(t *testing.T) {
	svc := &fakeService{overrideResult: &models.PaymentRecord{
		ID:         "chrg_test_1",
		UserID:     testUserID,
		PropertyID: testPropertyID,
		Amount:     decimal.NewFromInt(20),
		Currency:   "THB",
		Status:     enums.PaymentStatusSuccessful,
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/chrg_test_1/status", strings.NewReader(`{"status":"successful"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("paymentId", "chrg_test_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := serve(OverrideStatus(svc, nil), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "chrg_test_1", svc.overrideID)
	assert.Equal(t, enums.PaymentStatusSuccessful, svc.overrideStatus)
	var resp overrideResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "20.00", resp.Payment.Amount)
	assert.Equal(t, "successful", resp.Payment.Status)
}

func TestOverrideStatusRejectsUnknownStatus(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/chrg_test_1/status", strings.NewReader(`{"status":"refunded"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("paymentId", "chrg_test_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := serve(OverrideStatus(svc, nil), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.overrideID)
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	ctx := middleware.WithUserID(req.Context(), testUserID.String())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleCustomer))
	return req.WithContext(ctx)
}

type fakeService struct {
	err error

	chargeInput  *paymentsvc.ChargeInput
	chargeResult *paymentsvc.ChargeResult

	sourceInput  *paymentsvc.SourceInput
	sourceResult *paymentsvc.SourceResult

	accessProperty uuid.UUID
	accessResult   *paymentsvc.AccessResult

	overrideID     string
	overrideStatus enums.PaymentStatus
	overrideResult *models.PaymentRecord
}

func (f *fakeService) CreateCharge(_ context.Context, input paymentsvc.ChargeInput) (*paymentsvc.ChargeResult, error) {
	f.chargeInput = &input
	if f.err != nil {
		return nil, f.err
	}
	return f.chargeResult, nil
}

func (f *fakeService) CreateSource(_ context.Context, input paymentsvc.SourceInput) (*paymentsvc.SourceResult, error) {
	f.sourceInput = &input
	if f.err != nil {
		return nil, f.err
	}
	return f.sourceResult, nil
}

func (f *fakeService) ResolveAccess(_ context.Context, _ uuid.UUID, propertyID uuid.UUID) (*paymentsvc.AccessResult, error) {
	f.accessProperty = propertyID
	if f.err != nil {
		return nil, f.err
	}
	return f.accessResult, nil
}

func (f *fakeService) OverrideStatus(_ context.Context, paymentID string, status enums.PaymentStatus) (*models.PaymentRecord, error) {
	f.overrideID = paymentID
	f.overrideStatus = status
	if f.err != nil {
		return nil, f.err
	}
	return f.overrideResult, nil
}
