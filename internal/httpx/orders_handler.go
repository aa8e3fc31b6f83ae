package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-services/internal/auth"
	"github.com/ariefcatur/go-shop-services/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateIdempotent(ctx context.Context, caller auth.Principal, key string, lines []orders.LineInput) (orders.Order, bool, error)
	List(ctx context.Context, caller auth.Principal) ([]orders.Order, error)
	Get(ctx context.Context, caller auth.Principal, id int64) (orders.Order, error)
}

type OrdersHandler struct {
	Service  OrderService
	Verifier *auth.Verifier
	Log      *zap.Logger
}

// createOrderRequest carries only what the client may choose. Prices, dates,
// status and customer are set server side.
type createOrderRequest struct {
	OrderLines []struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	} `json:"orderLines"`
}

type orderLineResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	Date        string              `json:"date"`
	Status      orders.Status       `json:"status"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	CustomerID  string              `json:"customerId"`
	OrderLines  []orderLineResponse `json:"orderLines"`
}

func toOrderResponse(o orders.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return orderResponse{
		ID:          o.ID,
		Date:        o.Date.Format(time.DateOnly),
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CustomerID:  o.CustomerID,
		OrderLines:  lines,
	}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.Authenticate(h.Verifier, h.Log))
		r.With(auth.RequireAnyOrScope(auth.RoleUser, auth.RoleAdmin)).Get("/", h.listOrders)
		r.With(auth.RequireAnyOrScope(auth.RoleUser, auth.RoleAdmin)).Get("/{id}", h.getOrder)
		r.With(auth.RequireAnyOrScope(auth.RoleUser)).Post("/", h.createOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	lines := make([]orders.LineInput, 0, len(req.OrderLines))
	for _, l := range req.OrderLines {
		lines = append(lines, orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	// one product lookup per line, each bounded by the client timeout
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, replayed, err := h.Service.CreateIdempotent(ctx, caller, r.Header.Get("Idempotency-Key"), lines)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderResponse(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, caller)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	caller, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, caller, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
