package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-services/internal/auth"
	"github.com/ariefcatur/go-shop-services/internal/logger"
	"github.com/ariefcatur/go-shop-services/internal/products"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductStore interface {
	List(ctx context.Context) ([]products.Product, error)
	Get(ctx context.Context, id int64) (products.Product, error)
	Create(ctx context.Context, p products.Product) (products.Product, error)
	Update(ctx context.Context, id int64, p products.Product) (products.Product, error)
	Delete(ctx context.Context, id int64) error
}

type ProductsHandler struct {
	Store    ProductStore
	Verifier *auth.Verifier
	Log      *zap.Logger
}

// productRequest is the writable part of a product. An id in the body is
// ignored.
type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (p productRequest) toProduct() products.Product {
	return products.Product{Name: p.Name, Description: p.Description, Price: p.Price, Quantity: p.Quantity}
}

func (h *ProductsHandler) Register(r chi.Router) {
	readers := auth.RequireAny(auth.RoleUser, auth.RoleAdmin)
	admins := auth.RequireAny(auth.RoleAdmin)

	r.Route("/products", func(r chi.Router) {
		r.Use(auth.Authenticate(h.Verifier, h.Log))
		r.With(readers).Get("/", h.list)
		r.With(readers).Get("/{id}", h.get)
		r.With(admins).Post("/", h.create)
		r.With(admins).Put("/{id}", h.update)
		r.With(admins).Delete("/{id}", h.delete)
	})
}

// audit logs who asked for what, the way every product endpoint does.
func (h *ProductsHandler) audit(r *http.Request, op string, fields ...zap.Field) {
	p, _ := auth.FromContext(r.Context())
	fields = append([]zap.Field{zap.String("user", p.Username), zap.String("op", op)}, fields...)
	logger.FromContext(r.Context(), h.Log).Info("product request", fields...)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	h.audit(r, "list")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.List(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.audit(r, "get", zap.Int64("product_id", id))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.audit(r, "create", zap.String("name", req.Name))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Store.Create(ctx, req.toProduct())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.audit(r, "update", zap.Int64("product_id", id))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Store.Update(ctx, id, req.toProduct())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.audit(r, "delete", zap.Int64("product_id", id))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.Delete(ctx, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
