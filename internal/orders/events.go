package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventOrderCreated = "OrderCreated"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type LinePayload struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID     int64           `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Date        string          `json:"date"`
	Status      Status          `json:"status"`
	Lines       []LinePayload   `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func NewOrderCreated(o Order, producer, traceID string, at time.Time) (Envelope, error) {
	lines := make([]LinePayload, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LinePayload{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	payload, err := json.Marshal(OrderCreatedPayload{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Date:        o.Date.Format(time.DateOnly),
		Status:      o.Status,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: fmt.Sprint(o.ID),
		Payload:       payload,
	}, nil
}
