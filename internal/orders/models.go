package orders

import (
	"embed"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// Order is the aggregate root; Lines are owned by it and persisted with it.
type Order struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CustomerID  string          `json:"customerId"`
	Lines       []Line          `json:"orderLines"`
}

type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"-"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // unit price frozen at order time
}

// LineInput is one requested line. Any price the client sends is dropped
// before it gets here.
type LineInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}
