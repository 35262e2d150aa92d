package repository

import (
	"context"
	"time"

	"github.com/roboshop-devops-v1/cart/internal/domain"
)

// CartRepository loads and stores carts by cart id.
// A missing cart is a normal condition: Load returns an empty cart.
type CartRepository interface {
	Load(ctx context.Context, cartID string) (domain.Cart, error)
	Exists(ctx context.Context, cartID string) (domain.Cart, bool)
	Save(ctx context.Context, cartID string, cart domain.Cart, ttl time.Duration) error
	Delete(ctx context.Context, cartID string) error
	Rename(ctx context.Context, fromID, toID string, ttl time.Duration) (domain.Cart, error)
}
