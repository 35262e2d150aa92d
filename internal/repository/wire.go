package repository

import (
	"errors"
	"fmt"

	"github.com/roboshop-devops-v1/cart/internal/domain"
	"github.com/shopspring/decimal"
)

// CartDTO is the cached representation of a cart. Readers outside this
// service depend on these field names.
type CartDTO struct {
	Total float64       `json:"total"`
	Tax   float64       `json:"tax"`
	Items []CartItemDTO `json:"items"`
}

type CartItemDTO struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name,omitempty"`
	Qty      int     `json:"qty"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

func ToDTO(c domain.Cart) CartDTO {
	dto := CartDTO{
		Total: c.Total.InexactFloat64(),
		Tax:   c.Tax.InexactFloat64(),
		Items: make([]CartItemDTO, len(c.Items)),
	}

	for i, item := range c.Items {
		dto.Items[i] = CartItemDTO{
			SKU:      item.SKU,
			Name:     item.Name,
			Qty:      item.Qty,
			Price:    item.Price.InexactFloat64(),
			Subtotal: item.Subtotal.InexactFloat64(),
		}
	}

	return dto
}

var ErrInvalidCart = errors.New("invalid cached cart")

// FromDTO rebuilds a cart from its items. Stored totals are ignored and
// recomputed. Lines with an empty or repeated sku, a non-positive qty or a
// negative price make the whole blob invalid.
func FromDTO(dto CartDTO) (domain.Cart, error) {
	cart := domain.EmptyCart()
	seen := make(map[string]struct{}, len(dto.Items))
	for _, item := range dto.Items {
		switch {
		case item.SKU == "":
			return domain.EmptyCart(), fmt.Errorf("%w: empty sku", ErrInvalidCart)
		case item.Qty <= 0:
			return domain.EmptyCart(), fmt.Errorf("%w: sku %s has qty %d", ErrInvalidCart, item.SKU, item.Qty)
		case item.Price < 0:
			return domain.EmptyCart(), fmt.Errorf("%w: sku %s has negative price", ErrInvalidCart, item.SKU)
		}
		if _, dup := seen[item.SKU]; dup {
			return domain.EmptyCart(), fmt.Errorf("%w: duplicate sku %s", ErrInvalidCart, item.SKU)
		}
		seen[item.SKU] = struct{}{}

		cart.Items = append(cart.Items, domain.CartItem{
			SKU:   item.SKU,
			Name:  item.Name,
			Qty:   item.Qty,
			Price: decimal.NewFromFloat(item.Price),
		})
	}

	return domain.Recompute(cart), nil
}
