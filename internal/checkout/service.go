package checkout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
	"github.com/INNOCENT-010/storefront-checkout/internal/gateway"
)

// CartAccessor is the slice of the cart service the checkout flow needs.
type CartAccessor interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// Initializer starts a payment attempt with the gateway.
type Initializer interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
}

// OrderCreator persists the order with its pending transaction atomically.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *domain.Order, txn *domain.Transaction) error
}

type SubmitResult struct {
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Reference        string    `json:"reference"`
	OrderNumber      string    `json:"order_number"`
	OrderID          uuid.UUID `json:"order_id"`
}

// Service drives the cart -> validate -> assemble -> initialize -> persist
// flow. Validation and assembly happen fully before anything is sent, so
// no failure leaves the cart or an order half-written.
type Service struct {
	validator *Validator
	carts     CartAccessor
	gw        Initializer
	orders    OrderCreator
	// Collapses double-submits from the same session while a checkout
	// request is in flight. The DB idempotency on the reference remains
	// the real safety net.
	sfg singleflight.Group
}

func NewService(validator *Validator, carts CartAccessor, gw Initializer, orders OrderCreator) *Service {
	return &Service{
		validator: validator,
		carts:     carts,
		gw:        gw,
		orders:    orders,
	}
}

func (s *Service) Submit(ctx context.Context, sessionID string, shipping domain.ShippingInfo, notes string) (*SubmitResult, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		return s.submit(ctx, sessionID, shipping, notes)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubmitResult), nil
}

func (s *Service) submit(ctx context.Context, sessionID string, shipping domain.ShippingInfo, notes string) (*SubmitResult, error) {
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	if errs := s.validator.Validate(shipping, cart.Items, cart.Subtotal()); len(errs) > 0 {
		return nil, errs
	}

	payload := Assemble(cart.Items, shipping, notes)
	orderNumber := newOrderNumber()

	init, err := s.gw.Initialize(ctx, gateway.InitializeRequest{
		Email:    payload.Email,
		Amount:   payload.TotalAmount,
		Currency: payload.Currency,
		Metadata: map[string]interface{}{
			"order_number":  orderNumber,
			"customer_name": payload.CustomerName,
		},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New(),
		OrderNumber:     orderNumber,
		SessionID:       sessionID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		TotalAmount:     payload.TotalAmount,
		Currency:        payload.Currency,
		Items:           toOrderItems(payload.CartItems),
		ShippingAddress: payload.ShippingAddress,
		CustomerName:    payload.CustomerName,
		Email:           payload.Email,
		Phone:           payload.CustomerPhone,
		Notes:           payload.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	txn := &domain.Transaction{
		Reference: init.Reference,
		OrderID:   order.ID,
		Amount:    payload.TotalAmount,
		Status:    domain.TransactionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateOrder(ctx, order, txn); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// The submitted payload is frozen; the cart has served its purpose.
	if err := s.carts.ClearCart(ctx, sessionID); err != nil {
		log.Printf("clear cart after checkout failed for session %s: %v", sessionID, err)
	}

	return &SubmitResult{
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		Reference:        init.Reference,
		OrderNumber:      orderNumber,
		OrderID:          order.ID,
	}, nil
}

func toOrderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
			SKU:       l.SKU,
			Image:     l.Image,
		}
	}
	return items
}

func newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD-" + id[:10]
}
