package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/INNOCENT-010/storefront-checkout/internal/checkout"
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
	"github.com/INNOCENT-010/storefront-checkout/internal/orders/repository"
	"github.com/INNOCENT-010/storefront-checkout/internal/payments"
)

type CheckoutSubmitter interface {
	Submit(ctx context.Context, sessionID string, shipping domain.ShippingInfo, notes string) (*checkout.SubmitResult, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, reference string) (*domain.OrderStatusSnapshot, error)
	ConfirmFromEvent(ctx context.Context, ev payments.Event) (*domain.OrderStatusSnapshot, error)
}

type OrderReader interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderNumber string, status domain.OrderStatus) error
}

type PaymentsHandler struct {
	checkout      CheckoutSubmitter
	confirmations Confirmer
	orders        OrderReader
	webhookSecret string
	timeout       time.Duration
}

func NewPaymentsHandler(checkout CheckoutSubmitter, confirmations Confirmer, orders OrderReader, webhookSecret string, timeout time.Duration) *PaymentsHandler {
	return &PaymentsHandler{
		checkout:      checkout,
		confirmations: confirmations,
		orders:        orders,
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

type InitializeRequestDTO struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Notes        string `json:"notes"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// POST /payments/initialize
func (h *PaymentsHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	var req InitializeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shipping := domain.ShippingInfo{
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Phone:        req.Phone,
		Street:       req.Street,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
	}

	result, err := h.checkout.Submit(ctx, sessionID, shipping, req.Notes)
	if err != nil {
		handlePipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: result})
}

// GET /payments/verify/{reference}
func (h *PaymentsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		respondError(w, http.StatusBadRequest, "missing_reference", "reference is required")
		return
	}

	snapshot, err := h.confirmations.Confirm(ctx, reference)
	if err != nil {
		handlePipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: snapshot})
}

// POST /payments/webhook
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	signature := r.Header.Get("X-Paystack-Signature")
	if !payments.VerifySignature(h.webhookSecret, body, signature) {
		respondError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature mismatch")
		return
	}

	ev, err := payments.ParseEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed webhook payload")
		return
	}

	if _, err := h.confirmations.ConfirmFromEvent(ctx, ev); err != nil {
		// Acknowledge regardless so the provider does not retry forever;
		// an unknown reference here is logged, not replayed.
		log.Printf("webhook confirmation for reference %s failed: %v", ev.Reference, err)
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: nil})
}

// GET /payments/order/{order_number}
func (h *PaymentsHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderNumber := chi.URLParam(r, "order_number")

	order, err := h.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no such order")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: order})
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// PATCH /payments/order/{order_number}/status
func (h *PaymentsHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderNumber := chi.URLParam(r, "order_number")

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	status := domain.OrderStatus(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be one of pending, processing, shipped, delivered, cancelled")
		return
	}

	if err := h.orders.UpdateOrderStatus(ctx, orderNumber, status); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no such order")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update status")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: map[string]string{
		"order_number": orderNumber,
		"status":       req.Status,
	}})
}
