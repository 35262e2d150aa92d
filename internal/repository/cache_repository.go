package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roboshop-devops-v1/cart/internal/cache"
	"github.com/roboshop-devops-v1/cart/internal/domain"
)

type cacheRepository struct {
	cache  cache.Client
	logger *slog.Logger
}

func NewCacheRepository(c cache.Client, logger *slog.Logger) CartRepository {
	return &cacheRepository{
		cache:  c,
		logger: logger,
	}
}

func (r *cacheRepository) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	cart, _ := r.Exists(ctx, cartID)
	return cart, nil
}

// Exists is Load that also reports whether a readable cart was stored.
func (r *cacheRepository) Exists(ctx context.Context, cartID string) (domain.Cart, bool) {
	data, err := r.cache.Get(ctx, cacheKey(cartID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.EmptyCart(), false
	}
	if err != nil {
		r.logger.WarnContext(ctx, "cache get failed, treating cart as absent", "cart_id", cartID, "error", err)
		return domain.EmptyCart(), false
	}

	var dto CartDTO
	if errUnmarshal := json.Unmarshal([]byte(data), &dto); errUnmarshal != nil {
		r.logger.WarnContext(ctx, "undecodable cart in cache", "cart_id", cartID, "error", errUnmarshal)
		return domain.EmptyCart(), false
	}

	cart, err := FromDTO(dto)
	if err != nil {
		r.logger.WarnContext(ctx, "invalid cart in cache", "cart_id", cartID, "error", err)
		return domain.EmptyCart(), false
	}

	return cart, true
}

func (r *cacheRepository) Save(ctx context.Context, cartID string, cart domain.Cart, ttl time.Duration) error {
	data, err := json.Marshal(ToDTO(cart))
	if err != nil {
		return fmt.Errorf("%w: marshal cart failed: %w", domain.ErrStorage, err)
	}

	if err := r.cache.Set(ctx, cacheKey(cartID), string(data), ttl); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, cartID string) error {
	if err := r.cache.Delete(ctx, cacheKey(cartID)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

// Rename moves the cart stored under fromID to toID, replacing whatever
// toID held. The source entry is removed after the copy is written.
func (r *cacheRepository) Rename(ctx context.Context, fromID, toID string, ttl time.Duration) (domain.Cart, error) {
	cart, ok := r.Exists(ctx, fromID)
	if !ok {
		return cart, domain.ErrCartNotFound
	}
	if fromID == toID {
		return cart, nil
	}

	if err := r.Save(ctx, toID, cart, ttl); err != nil {
		return domain.Cart{}, err
	}
	if err := r.Delete(ctx, fromID); err != nil {
		r.logger.WarnContext(ctx, "renamed cart source not removed", "cart_id", fromID, "error", err)
	}

	return cart, nil
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}
