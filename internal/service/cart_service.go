package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/roboshop-devops-v1/cart/internal/domain"
	"github.com/roboshop-devops-v1/cart/internal/metrics"
	"github.com/roboshop-devops-v1/cart/internal/repository"
)

// ProductLookup resolves a sku to its catalogue entry. A nil product with
// a nil error means the sku is unknown.
type ProductLookup interface {
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
}

// ConnectionChecker reports cache liveness for health checks.
type ConnectionChecker interface {
	IsConnected(ctx context.Context) bool
}

type Health struct {
	App            string `json:"app"`
	CacheConnected bool   `json:"cacheConnected"`
}

// CartService runs each cart operation as load, compute, save. Concurrent
// writers to one cart are not serialized: the last save wins.
type CartService struct {
	repo     repository.CartRepository
	products ProductLookup
	cache    ConnectionChecker
	metrics  *metrics.Collector
	logger   *slog.Logger
	ttl      time.Duration
}

func NewCartService(
	repo repository.CartRepository,
	products ProductLookup,
	cache ConnectionChecker,
	collector *metrics.Collector,
	logger *slog.Logger,
	ttl time.Duration,
) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		metrics:  collector,
		logger:   logger,
		ttl:      ttl,
	}
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	cart, ok := s.repo.Exists(ctx, cartID)
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, cartID, sku string, qty int) (cart domain.Cart, err error) {
	defer func() { s.record(ctx, "add", cartID, err) }()

	product, err := s.products.GetProduct(ctx, sku)
	if err != nil {
		return domain.Cart{}, err
	}

	current, err := s.repo.Load(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}

	next, err := domain.AddItem(current, product, sku, qty)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.repo.Save(ctx, cartID, next, s.ttl); err != nil {
		return domain.Cart{}, err
	}

	s.metrics.ItemsAdded.Add(float64(qty))
	return next, nil
}

func (s *CartService) UpdateItem(ctx context.Context, cartID, sku string, qty int) (cart domain.Cart, err error) {
	defer func() { s.record(ctx, "update", cartID, err) }()

	current, ok := s.repo.Exists(ctx, cartID)
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}

	next, err := domain.UpdateItem(current, sku, qty)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.repo.Save(ctx, cartID, next, s.ttl); err != nil {
		return domain.Cart{}, err
	}
	return next, nil
}

func (s *CartService) DeleteCart(ctx context.Context, cartID string) (err error) {
	defer func() { s.record(ctx, "delete", cartID, err) }()
	return s.repo.Delete(ctx, cartID)
}

// RenameCart moves a cart to a new id, e.g. when an anonymous shopper
// logs in.
func (s *CartService) RenameCart(ctx context.Context, fromID, toID string) (cart domain.Cart, err error) {
	defer func() { s.record(ctx, "rename", fromID, err) }()
	return s.repo.Rename(ctx, fromID, toID, s.ttl)
}

// Health reports the app as up regardless of cache state.
func (s *CartService) Health(ctx context.Context) Health {
	return Health{
		App:            "OK",
		CacheConnected: s.cache.IsConnected(ctx),
	}
}

func (s *CartService) record(ctx context.Context, operation, cartID string, err error) {
	s.metrics.RecordOperation(operation, err)
	if err != nil {
		s.logger.InfoContext(ctx, "cart operation rejected", "operation", operation, "cart_id", cartID, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "cart operation applied", "operation", operation, "cart_id", cartID)
}
