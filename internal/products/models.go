package products

import (
	"embed"
	"errors"

	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var Migrations embed.FS

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}
