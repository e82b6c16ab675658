package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/INNOCENT-010/storefront-checkout/internal/cart/cache"
	"github.com/INNOCENT-010/storefront-checkout/internal/cart/repository"
	"github.com/INNOCENT-010/storefront-checkout/internal/catalog"
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

var ErrLineNotFound = errors.New("cart line not found")

// CartService owns the session-scoped cart. Lines are keyed by the
// (product_id, size, color) composite key: adding an existing key merges
// quantities, never duplicates lines. Quantity updates below 1 clamp to 1;
// deleting a line goes through RemoveItem, never through a zero quantity.
type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.ProductGetter
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog catalog.ProductGetter) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
	}
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, sessionID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) { // not found cart return empty cart
			return &domain.Cart{
				SessionID: sessionID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet // err from repo is not cache miss, return it
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), sessionID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return cart, nil // cart was not in cache, return it from repo
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem resolves the product from the catalog and merges it into the
// cart. Quantities below 1 default to 1.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64, quantity int, size, color string) (*domain.Cart, error) {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("resolve product %d: %w", productID, err)
	}

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Size:      size,
		Color:     color,
		SKU:       product.SKU,
		Image:     product.Image,
		AddedAt:   time.Now(),
	}

	if i := cart.FindLine(line.Key()); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, line)
	}

	return s.saveCart(ctx, cart)
}

// SetQuantity updates the quantity of the line matching the composite key.
// Values below 1 are clamped to 1: decrement-to-zero must go through
// RemoveItem so a deletion is always an explicit caller decision.
func (s *CartService) SetQuantity(ctx context.Context, sessionID string, productID int64, quantity int, size, color string) (*domain.Cart, error) {
	if quantity < 1 {
		quantity = 1
	}

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := domain.LineKey{ProductID: productID, Size: size, Color: color}
	i := cart.FindLine(key)
	if i < 0 {
		return nil, ErrLineNotFound
	}
	cart.Items[i].Quantity = quantity

	return s.saveCart(ctx, cart)
}

// RemoveItem removes the line matching the composite key. Removing an
// absent line is a no-op, not an error.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64, size, color string) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := domain.LineKey{ProductID: productID, Size: size, Color: color}
	i := cart.FindLine(key)
	if i < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)

	return s.saveCart(ctx, cart)
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	errDelete := s.repo.DeleteCart(ctx, sessionID)
	if errDelete != nil {
		log.Printf("repo delete cart error: %v \n", errDelete)
		return errDelete
	}

	invalidateCache(s, sessionID)
	return nil
}

func (s *CartService) loadCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) saveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		log.Printf("repo upsert cart error: %v \n", err)
		return nil, err
	}

	invalidateCache(s, cart.SessionID)
	return cart, nil
}

func invalidateCache(s *CartService, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, sessionID)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v \n", errInvalidate)
	}
}
