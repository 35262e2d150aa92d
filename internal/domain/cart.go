package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// TaxDivisor is the fixed tax model: tax = total / TaxDivisor.
const TaxDivisor = 6

var taxDivisor = decimal.NewFromInt(TaxDivisor)

type Cart struct {
	Items []CartItem
	Total decimal.Decimal
	Tax   decimal.Decimal
}

type CartItem struct {
	SKU      string
	Name     string
	Qty      int
	Price    decimal.Decimal
	Subtotal decimal.Decimal
}

// Product is the catalogue view of a sku. The core never modifies it.
type Product struct {
	SKU     string
	Name    string
	Price   decimal.Decimal
	InStock int
}

func EmptyCart() Cart {
	return Cart{
		Items: []CartItem{},
		Total: decimal.Zero,
		Tax:   decimal.Zero,
	}
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) indexOf(sku string) int {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items, Total: c.Total, Tax: c.Tax}
}

// AddItem returns a copy of cart with qty units of sku added. An existing
// line is incremented, a new sku is appended with the product's price.
// Stock only gates whether the product may be added at all. An increment
// that would overflow the line quantity is rejected.
func AddItem(cart Cart, product *Product, sku string, qty int) (Cart, error) {
	if product == nil {
		return cart, ErrProductNotFound
	}
	if product.InStock <= 0 {
		return cart, ErrOutOfStock
	}
	if qty <= 0 {
		return cart, ErrInvalidQuantity
	}

	next := cart.clone()
	if i := next.indexOf(sku); i >= 0 {
		if qty > math.MaxInt-next.Items[i].Qty {
			return cart, ErrInvalidQuantity
		}
		next.Items[i].Qty += qty
	} else {
		next.Items = append(next.Items, CartItem{
			SKU:   sku,
			Name:  product.Name,
			Qty:   qty,
			Price: product.Price,
		})
	}

	return Recompute(next), nil
}

// UpdateItem returns a copy of cart with the quantity of sku set to qty.
func UpdateItem(cart Cart, sku string, qty int) (Cart, error) {
	if qty <= 0 {
		return cart, ErrInvalidQuantity
	}
	if cart.IsEmpty() {
		return cart, ErrCartNotFound
	}

	i := cart.indexOf(sku)
	if i < 0 {
		return cart, ErrItemNotFound
	}

	next := cart.clone()
	next.Items[i].Qty = qty

	return Recompute(next), nil
}

// Recompute derives every subtotal, the total and the tax from item
// quantities and prices. Subtotals are summed unrounded, in item order.
func Recompute(cart Cart) Cart {
	next := cart.clone()
	total := decimal.Zero
	for i := range next.Items {
		item := &next.Items[i]
		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
		total = total.Add(item.Subtotal)
	}

	next.Total = total
	next.Tax = total.Div(taxDivisor)
	return next
}
