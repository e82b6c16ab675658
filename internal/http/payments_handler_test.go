package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INNOCENT-010/storefront-checkout/internal/checkout"
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
	"github.com/INNOCENT-010/storefront-checkout/internal/gateway"
	"github.com/INNOCENT-010/storefront-checkout/internal/orders/repository"
	"github.com/INNOCENT-010/storefront-checkout/internal/payments"
)

const testWebhookSecret = "whsec_test"

type mockCheckout struct {
	m      sync.Mutex
	result *checkout.SubmitResult
	err    error
}

func (s *mockCheckout) Submit(_ context.Context, sessionID string, shipping domain.ShippingInfo, notes string) (*checkout.SubmitResult, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type mockConfirmer struct {
	m          sync.Mutex
	snapshot   *domain.OrderStatusSnapshot
	err        error
	eventCalls int
	lastEvent  payments.Event
}

func (s *mockConfirmer) Confirm(_ context.Context, reference string) (*domain.OrderStatusSnapshot, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *mockConfirmer) ConfirmFromEvent(_ context.Context, ev payments.Event) (*domain.OrderStatusSnapshot, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.eventCalls++
	s.lastEvent = ev
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type mockOrderReader struct {
	m     sync.Mutex
	order *domain.Order
	err   error
}

func (s *mockOrderReader) GetOrderByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *mockOrderReader) UpdateOrderStatus(_ context.Context, orderNumber string, status domain.OrderStatus) error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.err
}

func newPaymentsRouter(co *mockCheckout, cf *mockConfirmer, or *mockOrderReader) http.Handler {
	h := NewPaymentsHandler(co, cf, or, testWebhookSecret, 5*time.Second)
	r := chi.NewRouter()
	r.Use(SessionMiddleware)
	r.Route("/payments", func(r chi.Router) {
		r.Post("/initialize", h.Initialize)
		r.Get("/verify/{reference}", h.Verify)
		r.Post("/webhook", h.Webhook)
		r.Get("/order/{order_number}", h.GetOrder)
		r.Patch("/order/{order_number}/status", h.UpdateOrderStatus)
	})
	return r
}

func initializeBody() []byte {
	body, _ := json.Marshal(InitializeRequestDTO{
		CustomerName: "Ada Obi",
		Email:        "ada@example.com",
		Phone:        "+2348012345678",
		Street:       "12 Marina Rd",
		City:         "Lagos",
		State:        "Lagos",
		Country:      "NG",
	})
	return body
}

func TestInitialize_Created(t *testing.T) {
	co := &mockCheckout{result: &checkout.SubmitResult{
		AuthorizationURL: "https://checkout.gateway.test/abc",
		AccessCode:       "abc",
		Reference:        "ref-1",
		OrderNumber:      "ORD-AB12CD34EF",
		OrderID:          uuid.New(),
	}}
	router := newPaymentsRouter(co, &mockConfirmer{}, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodPost, "/payments/initialize", bytes.NewReader(initializeBody()))
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool                  `json:"success"`
		Data    checkout.SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://checkout.gateway.test/abc", resp.Data.AuthorizationURL)
	assert.Equal(t, "ORD-AB12CD34EF", resp.Data.OrderNumber)
}

func TestInitialize_ValidationErrorsKeepFieldDetail(t *testing.T) {
	co := &mockCheckout{err: checkout.ValidationErrors{
		{Field: "email", Message: "invalid email format"},
		{Field: "cart", Message: "cart is empty"},
	}}
	router := newPaymentsRouter(co, &mockConfirmer{}, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodPost, "/payments/initialize", bytes.NewReader(initializeBody()))
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
	assert.Equal(t, "invalid email format", resp.Error)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "cart", resp.Fields[1].Field)
}

func TestInitialize_ErrorTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"network", &gateway.NetworkError{Op: "initialize", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "network_error"},
		{"protocol", &gateway.ProtocolError{Op: "initialize", ContentType: "text/html"}, http.StatusBadGateway, "protocol_error"},
		{"gateway", &gateway.GatewayError{StatusCode: 400, Message: "Invalid amount passed"}, http.StatusBadGateway, "gateway_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newPaymentsRouter(&mockCheckout{err: tt.err}, &mockConfirmer{}, &mockOrderReader{})

			req := httptest.NewRequest(http.MethodPost, "/payments/initialize", bytes.NewReader(initializeBody()))
			req.Header.Set("X-Session-ID", "sess-1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
		})
	}
}

func TestInitialize_GatewayMessagePreservedVerbatim(t *testing.T) {
	router := newPaymentsRouter(&mockCheckout{err: &gateway.GatewayError{StatusCode: 400, Message: "Invalid amount passed"}}, &mockConfirmer{}, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodPost, "/payments/initialize", bytes.NewReader(initializeBody()))
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid amount passed", resp.Error)
}

func TestInitialize_MissingSession(t *testing.T) {
	router := newPaymentsRouter(&mockCheckout{}, &mockConfirmer{}, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodPost, "/payments/initialize", bytes.NewReader(initializeBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerify_OK(t *testing.T) {
	cf := &mockConfirmer{snapshot: &domain.OrderStatusSnapshot{
		OrderNumber:   "ORD-AB12CD34EF",
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusPaid,
		Amount:        45000,
		Reference:     "ref-1",
	}}
	router := newPaymentsRouter(&mockCheckout{}, cf, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodGet, "/payments/verify/ref-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                       `json:"success"`
		Data    domain.OrderStatusSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.PaymentStatusPaid, resp.Data.PaymentStatus)
}

func TestVerify_UnknownReference(t *testing.T) {
	cf := &mockConfirmer{err: payments.ErrReferenceNotFound}
	router := newPaymentsRouter(&mockCheckout{}, cf, &mockOrderReader{})

	req := httptest.NewRequest(http.MethodGet, "/payments/verify/ref-nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reference_not_found", resp.Code)
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_ValidSignatureApplied(t *testing.T) {
	cf := &mockConfirmer{snapshot: &domain.OrderStatusSnapshot{Reference: "ref-1"}}
	router := newPaymentsRouter(&mockCheckout{}, cf, &mockOrderReader{})

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success","channel":"card"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Paystack-Signature", signWebhook(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cf.eventCalls)
	assert.Equal(t, "ref-1", cf.lastEvent.Reference)
	assert.Equal(t, domain.TransactionStatusSuccess, cf.lastEvent.Status)
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	cf := &mockConfirmer{}
	router := newPaymentsRouter(&mockCheckout{}, cf, &mockOrderReader{})

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Paystack-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, cf.eventCalls)
}

func TestWebhook_UnknownReferenceStillAcked(t *testing.T) {
	cf := &mockConfirmer{err: payments.ErrReferenceNotFound}
	router := newPaymentsRouter(&mockCheckout{}, cf, &mockOrderReader{})

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-ghost","status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Paystack-Signature", signWebhook(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cf.eventCalls)
}

func TestGetOrder_NotFound(t *testing.T) {
	or := &mockOrderReader{err: repository.ErrOrderNotFound}
	router := newPaymentsRouter(&mockCheckout{}, &mockConfirmer{}, or)

	req := httptest.NewRequest(http.MethodGet, "/payments/order/ORD-MISSING00", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		orErr    error
		wantCode int
	}{
		{"valid transition", `{"status":"shipped"}`, nil, http.StatusOK},
		{"invalid status", `{"status":"teleported"}`, nil, http.StatusBadRequest},
		{"unknown order", `{"status":"shipped"}`, repository.ErrOrderNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newPaymentsRouter(&mockCheckout{}, &mockConfirmer{}, &mockOrderReader{err: tt.orErr})

			req := httptest.NewRequest(http.MethodPatch, "/payments/order/ORD-AB12CD34EF/status", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
