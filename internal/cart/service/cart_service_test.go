package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INNOCENT-010/storefront-checkout/internal/cart/cache"
	"github.com/INNOCENT-010/storefront-checkout/internal/cart/repository"
	"github.com/INNOCENT-010/storefront-checkout/internal/catalog"
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = c
	return nil
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = nil
	return nil
}

type mockCache struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

type mockCatalog struct {
	products map[int64]*domain.Product
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func newTestService() (*CartService, *mockRepository) {
	repo := &mockRepository{}
	c := &mockCache{}
	cat := &mockCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Dress A", Price: 15000, SKU: "DRS-001", Image: "/images/dress-a.jpg"},
		2: {ID: 2, Name: "Dress B", Price: 20000, SKU: "DRS-002"},
	}}
	return NewCartService(repo, c, cat), repo
}

func TestAddItem_MergesSameCompositeKey(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 2, "M", "red")
	require.NoError(t, err)

	cart, err := svc.AddItem(ctx, "sess-1", 1, 3, "M", "red")
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItem_DifferentVariantIsNewLine(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 1, "M", "red")
	require.NoError(t, err)

	cart, err := svc.AddItem(ctx, "sess-1", 1, 1, "L", "red")
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2)
}

func TestAddItem_ResolvesProductFromCatalog(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "sess-1", 1, 1, "", "")
	require.NoError(t, err)

	line := cart.Items[0]
	assert.Equal(t, "Dress A", line.Name)
	assert.Equal(t, int64(15000), line.UnitPrice)
	assert.Equal(t, "DRS-001", line.SKU)
	assert.Equal(t, "/images/dress-a.jpg", line.Image)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddItem(context.Background(), "sess-1", 99, 1, "", "")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestSetQuantity_ClampsToOne(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 2, "", "")
	require.NoError(t, err)

	cart, err := svc.SetQuantity(ctx, "sess-1", 1, 0, "", "")
	require.NoError(t, err)

	// Decrement below one clamps; deletion must go through RemoveItem.
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestSetQuantity_UnknownLine(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SetQuantity(context.Background(), "sess-1", 1, 2, "", "")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemoveItem_AbsentLineIsNoOp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 1, "", "")
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, "sess-1", 2, "", "")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestSubtotalScenario(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "sess-1", 1, 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), cart.Subtotal())

	cart, err = svc.SetQuantity(ctx, "sess-1", 1, 3, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), cart.Subtotal())

	cart, err = svc.RemoveItem(ctx, "sess-1", 1, "", "")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Subtotal())
}

func TestGetCart_EmptyForNewSession(t *testing.T) {
	svc, _ := newTestService()

	cart, err := svc.GetCart(context.Background(), "fresh-session")
	require.NoError(t, err)
	assert.Equal(t, "fresh-session", cart.SessionID)
	assert.Empty(t, cart.Items)
}

func TestClearCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 2, "", "")
	require.NoError(t, err)

	err = svc.ClearCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, repo.cart)
}
