package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                  = errors.New("order not found")
	ErrProductNotFound           = errors.New("product not found")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrProductServiceUnavailable = errors.New("product service unavailable")
	ErrInvalidOrder              = errors.New("invalid order")
)

// StockError reports a line asking for more than the product has on hand.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
