package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/roboshop-devops-v1/cart/internal/domain"
	"github.com/roboshop-devops-v1/cart/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m       sync.RWMutex
	carts   map[string]domain.Cart
	saveErr error
	saves   int
	lastTTL time.Duration
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]domain.Cart{}}
}

func (m *mockRepository) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	cart, _ := m.Exists(ctx, cartID)
	return cart, nil
}

func (m *mockRepository) Exists(_ context.Context, cartID string) (domain.Cart, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[cartID]
	if !ok {
		return domain.EmptyCart(), false
	}
	return cart, true
}

func (m *mockRepository) Save(_ context.Context, cartID string, cart domain.Cart, ttl time.Duration) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.lastTTL = ttl
	m.carts[cartID] = cart
	return nil
}

func (m *mockRepository) Delete(_ context.Context, cartID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, cartID)
	return nil
}

func (m *mockRepository) Rename(_ context.Context, fromID, toID string, _ time.Duration) (domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	cart, ok := m.carts[fromID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	delete(m.carts, fromID)
	m.carts[toID] = cart
	return cart, nil
}

func (m *mockRepository) saveCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saves
}

type mockProducts struct {
	products map[string]*domain.Product
	err      error
}

func (m mockProducts) GetProduct(_ context.Context, sku string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products[sku], nil
}

type mockCache struct {
	connected bool
}

func (m mockCache) IsConnected(context.Context) bool {
	return m.connected
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestService(repo *mockRepository, products mockProducts) (*CartService, *metrics.Collector) {
	collector := metrics.NewCollector("cart_test")
	return NewCartService(repo, products, mockCache{connected: true}, collector, discardLogger, time.Hour), collector
}

func catalogue() mockProducts {
	return mockProducts{products: map[string]*domain.Product{
		"456": {SKU: "456", Name: "Product1", Price: decimal.NewFromInt(10), InStock: 5},
		"789": {SKU: "789", Name: "Product2", Price: decimal.NewFromInt(25), InStock: 1},
		"000": {SKU: "000", Name: "Sold out", Price: decimal.NewFromInt(1), InStock: 0},
	}}
}

func TestAddItem_CreatesCart(t *testing.T) {
	repo := newMockRepository()
	sut, collector := newTestService(repo, catalogue())

	cart, err := sut.AddItem(context.Background(), "123", "456", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "456", cart.Items[0].SKU)
	assert.Equal(t, 2, cart.Items[0].Qty)
	assert.Equal(t, 20.0, cart.Total.InexactFloat64())
	assert.InDelta(t, 20.0/6, cart.Tax.InexactFloat64(), 1e-12)

	stored, ok := repo.Exists(context.Background(), "123")
	require.True(t, ok)
	assert.Equal(t, cart, stored)
	assert.Equal(t, time.Hour, repo.lastTTL)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.ItemsAdded))
}

func TestAddItem_ProductNotFound(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())

	_, err := sut.AddItem(context.Background(), "123", "nope", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 0, repo.saveCount())
}

func TestAddItem_OutOfStock(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())
	_, err := sut.AddItem(context.Background(), "123", "456", 1)
	require.NoError(t, err)
	before, _ := repo.Exists(context.Background(), "123")

	_, err = sut.AddItem(context.Background(), "123", "000", 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	after, _ := repo.Exists(context.Background(), "123")
	assert.Equal(t, before, after)
	assert.Equal(t, 1, repo.saveCount())
}

func TestAddItem_LookupErrorPropagates(t *testing.T) {
	repo := newMockRepository()
	lookupErr := errors.New("catalogue unavailable")
	sut, _ := newTestService(repo, mockProducts{err: lookupErr})

	_, err := sut.AddItem(context.Background(), "123", "456", 1)
	assert.ErrorIs(t, err, lookupErr)
	assert.Equal(t, 0, repo.saveCount())
}

func TestAddItem_SaveError(t *testing.T) {
	repo := newMockRepository()
	repo.saveErr = fmt.Errorf("%w: redis set failed", domain.ErrStorage)
	sut, collector := newTestService(repo, catalogue())

	_, err := sut.AddItem(context.Background(), "123", "456", 1)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.ItemsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CartOperations.WithLabelValues("add", "error")))
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())

	_, err := sut.AddItem(context.Background(), "123", "456", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 0, repo.saveCount())
}

func TestUpdateItem_ReplacesQuantity(t *testing.T) {
	repo := newMockRepository()
	repo.carts["123"] = domain.Cart{
		Items: []domain.CartItem{{SKU: "456", Qty: 2, Price: decimal.NewFromInt(25), Subtotal: decimal.NewFromInt(50)}},
		Total: decimal.NewFromInt(50),
		Tax:   decimal.RequireFromString("8.33"),
	}
	sut, _ := newTestService(repo, catalogue())

	cart, err := sut.UpdateItem(context.Background(), "123", "456", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Qty)
	assert.Equal(t, 75.0, cart.Items[0].Subtotal.InexactFloat64())
	assert.Equal(t, 75.0, cart.Total.InexactFloat64())
	assert.Equal(t, 12.5, cart.Tax.InexactFloat64())
}

func TestUpdateItem_AbsentCart(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())

	_, err := sut.UpdateItem(context.Background(), "123", "456", 3)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Equal(t, 0, repo.saveCount())

	_, ok := repo.Exists(context.Background(), "123")
	assert.False(t, ok)
}

func TestUpdateItem_UnknownSku(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())
	_, err := sut.AddItem(context.Background(), "123", "456", 1)
	require.NoError(t, err)

	_, err = sut.UpdateItem(context.Background(), "123", "789", 3)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Equal(t, 1, repo.saveCount())
}

func TestGetCart(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())

	_, err := sut.GetCart(context.Background(), "123")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	_, err = sut.AddItem(context.Background(), "123", "456", 1)
	require.NoError(t, err)

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestDeleteCart(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())
	_, err := sut.AddItem(context.Background(), "123", "456", 1)
	require.NoError(t, err)

	require.NoError(t, sut.DeleteCart(context.Background(), "123"))
	_, err = sut.GetCart(context.Background(), "123")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestRenameCart(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())
	_, err := sut.AddItem(context.Background(), "anon", "456", 1)
	require.NoError(t, err)

	cart, err := sut.RenameCart(context.Background(), "anon", "user")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	_, err = sut.GetCart(context.Background(), "anon")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestHealth(t *testing.T) {
	collector := metrics.NewCollector("cart_test")

	up := NewCartService(newMockRepository(), catalogue(), mockCache{connected: true}, collector, discardLogger, time.Hour)
	assert.Equal(t, Health{App: "OK", CacheConnected: true}, up.Health(context.Background()))

	down := NewCartService(newMockRepository(), catalogue(), mockCache{connected: false}, collector, discardLogger, time.Hour)
	assert.Equal(t, Health{App: "OK", CacheConnected: false}, down.Health(context.Background()))
}

func TestConcurrentAdds_LastWriterWins(t *testing.T) {
	repo := newMockRepository()
	sut, _ := newTestService(repo, catalogue())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sut.AddItem(context.Background(), "123", "456", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.GreaterOrEqual(t, cart.Items[0].Qty, 1)
	assert.LessOrEqual(t, cart.Items[0].Qty, 10)
	assert.True(t, cart.Total.Equal(cart.Items[0].Subtotal))
}
