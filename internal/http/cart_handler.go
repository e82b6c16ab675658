package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/INNOCENT-010/storefront-checkout/internal/cart/service"
	"github.com/INNOCENT-010/storefront-checkout/internal/catalog"
	"github.com/INNOCENT-010/storefront-checkout/internal/currency"
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

// CartService is what the HTTP layer needs from the cart.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionID string, productID int64, quantity int, size, color string) (*domain.Cart, error)
	SetQuantity(ctx context.Context, sessionID string, productID int64, quantity int, size, color string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID string, productID int64, size, color string) (*domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type CartHandler struct {
	carts     CartService
	converter *currency.Converter
	timeout   time.Duration
}

func NewCartHandler(carts CartService, converter *currency.Converter, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:     carts,
		converter: converter,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size"`
	Color    string `json:"color"`
}

type CartResponseDTO struct {
	SessionID string            `json:"session_id"`
	Items     []domain.CartLine `json:"items"`
	Subtotal  int64             `json:"subtotal"`
	// DisplaySubtotal is presentation only. The subtotal above is the
	// charge-bearing value and is always in the canonical currency.
	DisplaySubtotal string `json:"display_subtotal,omitempty"`
}

func cartResponse(cart *domain.Cart) CartResponseDTO {
	items := cart.Items
	if items == nil {
		items = []domain.CartLine{}
	}
	return CartResponseDTO{
		SessionID: cart.SessionID,
		Items:     items,
		Subtotal:  cart.Subtotal(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	cart, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	resp := cartResponse(cart)
	if display := r.URL.Query().Get("display"); display != "" {
		formatted, errFmt := h.converter.Format(cart.Subtotal(), currency.Currency(display))
		if errFmt != nil {
			respondError(w, http.StatusBadRequest, "invalid_currency", "unsupported display currency")
			return
		}
		resp.DisplaySubtotal = formatted
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	cart, err := h.carts.AddItem(ctx, sessionID, req.ProductID, req.Quantity, req.Size, req.Color)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "no such product")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add item")
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	cart, err := h.carts.SetQuantity(ctx, sessionID, productID, req.Quantity, req.Size, req.Color)
	if err != nil {
		if errors.Is(err, service.ErrLineNotFound) {
			respondError(w, http.StatusNotFound, "line_not_found", "no such cart line")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update quantity")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	size := r.URL.Query().Get("size")
	color := r.URL.Query().Get("color")

	cart, err := h.carts.RemoveItem(ctx, sessionID, productID, size, color)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove item")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "X-Session-ID header is required")
		return
	}

	if err := h.carts.ClearCart(ctx, sessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(&domain.Cart{SessionID: sessionID}))
}

func parseProductID(r *http.Request) (int64, error) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		return 0, errors.New("invalid product_id")
	}
	return productID, nil
}
