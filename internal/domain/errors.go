package domain

import "errors"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("out of stock")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrStorage         = errors.New("cart storage failure")
)
