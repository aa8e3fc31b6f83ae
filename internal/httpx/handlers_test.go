package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-services/internal/auth"
	"github.com/ariefcatur/go-shop-services/internal/auth/authtest"
	"github.com/ariefcatur/go-shop-services/internal/httpx"
	"github.com/ariefcatur/go-shop-services/internal/orders"
	"github.com/ariefcatur/go-shop-services/internal/productclient"
	"github.com/ariefcatur/go-shop-services/internal/products"
	"github.com/ariefcatur/go-shop-services/internal/redisx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memProducts struct {
	mu    sync.Mutex
	seq   int64
	items map[int64]products.Product
}

func newMemProducts() *memProducts {
	m := &memProducts{items: map[int64]products.Product{}}
	for _, p := range []products.Product{
		{Name: "Laptop", Description: "High-end gaming laptop", Price: decimal.NewFromInt(1200), Quantity: 10},
		{Name: "Smartphone", Description: "Latest model smartphone", Price: decimal.NewFromInt(800), Quantity: 20},
		{Name: "Headphones", Description: "Noise-cancelling headphones", Price: decimal.NewFromInt(200), Quantity: 50},
	} {
		_, _ = m.Create(context.Background(), p)
	}
	return m
}

func (m *memProducts) List(ctx context.Context) ([]products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]products.Product, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProducts) Get(ctx context.Context, id int64) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) Create(ctx context.Context, p products.Product) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = m.seq
	m.items[p.ID] = p
	return p, nil
}

func (m *memProducts) Update(ctx context.Context, id int64, p products.Product) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return products.Product{}, products.ErrNotFound
	}
	p.ID = id
	m.items[id] = p
	return p, nil
}

func (m *memProducts) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	seq    int64
	orders []orders.Order
}

func (m *memOrders) Create(ctx context.Context, o orders.Order) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	o.ID = m.seq
	for i := range o.Lines {
		o.Lines[i].ID = m.seq*100 + int64(i)
		o.Lines[i].OrderID = o.ID
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memOrders) Get(ctx context.Context, id int64) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (m *memOrders) List(ctx context.Context) ([]orders.Order, error) {
	return m.ListByCustomer(ctx, "")
}

func (m *memOrders) ListByCustomer(ctx context.Context, customer string) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []orders.Order{}
	for i := len(m.orders) - 1; i >= 0; i-- {
		if customer == "" || m.orders[i].CustomerID == customer {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

var (
	userTok  = authtest.Token("alice", auth.RoleUser)
	bobTok   = authtest.Token("bob", auth.RoleUser)
	adminTok = authtest.Token("root", auth.RoleAdmin)
)

func verifier() *auth.Verifier { return auth.NewHMACVerifier([]byte(authtest.Secret), "") }

func productRouter(store httpx.ProductStore) http.Handler {
	r := httpx.NewRouter(zap.NewNop())
	(&httpx.ProductsHandler{Store: store, Verifier: verifier(), Log: zap.NewNop()}).Register(r)
	return r
}

type orderEnv struct {
	router   http.Handler
	store    *memOrders
	products *memProducts
	upstream *httptest.Server
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	ps := newMemProducts()
	upstream := httptest.NewServer(productRouter(ps))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	store := &memOrders{}
	svc := &orders.Service{
		Store:    store,
		Products: productclient.New(upstream.URL, productclient.Options{Timeout: time.Second}),
		Cache:    &orders.RedisCache{R: redisx.New(mr.Addr())},
		Log:      zap.NewNop(),
	}
	r := httpx.NewRouter(zap.NewNop())
	(&httpx.OrdersHandler{Service: svc, Verifier: verifier(), Log: zap.NewNop()}).Register(r)
	return &orderEnv{router: r, store: store, products: ps, upstream: upstream}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	rec := do(t, productRouter(newMemProducts()), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProducts_ReadAccess(t *testing.T) {
	h := productRouter(newMemProducts())

	rec := do(t, h, http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/products", authtest.Token("guest"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, tok := range []string{userTok, adminTok} {
		rec = do(t, h, http.MethodGet, "/products", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]map[string]any](t, rec)
		require.Len(t, list, 3)
		assert.Equal(t, "Laptop", list[0]["name"])
		assert.Equal(t, float64(1200), list[0]["price"], "price is a JSON number")
	}

	rec = do(t, h, http.MethodGet, "/products/2", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Smartphone", decode[products.Product](t, rec).Name)

	rec = do(t, h, http.MethodGet, "/products/99", userTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[httpx.ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/products/abc", userTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode[httpx.ErrorResponse](t, rec).Code)
}

func TestProducts_WritesNeedAdmin(t *testing.T) {
	h := productRouter(newMemProducts())
	body := map[string]any{"name": "Mouse", "price": 25, "quantity": 5}

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/products", userTok, body).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, "/products/1", userTok, body).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/products/1", userTok, nil).Code)

	scopeAdmin := authtest.Sign(jwt.MapClaims{
		"preferred_username": "mallory",
		"scope":              "openid ADMIN USER",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/products", scopeAdmin, body).Code,
		"product writes need the realm role")
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/products", scopeAdmin, nil).Code)
}

func TestOrders_ScopeUserMayList(t *testing.T) {
	env := newOrderEnv(t)
	scopeUser := authtest.Sign(jwt.MapClaims{
		"preferred_username": "alice",
		"scope":              "openid USER",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})

	rec := do(t, env.router, http.MethodGet, "/orders", scopeUser, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/orders", authtest.Token("guest"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProducts_CreateUpdateDelete(t *testing.T) {
	store := newMemProducts()
	h := productRouter(store)

	rec := do(t, h, http.MethodPost, "/products", adminTok,
		map[string]any{"id": 1, "name": "Mouse", "description": "wireless", "price": 25.5, "quantity": 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[products.Product](t, rec)
	assert.Equal(t, int64(4), created.ID, "body id is ignored")
	assert.True(t, decimal.RequireFromString("25.5").Equal(created.Price))

	rec = do(t, h, http.MethodPut, "/products/4", adminTok,
		map[string]any{"id": 77, "name": "Mouse 2", "description": "", "price": 30, "quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[products.Product](t, rec)
	assert.Equal(t, int64(4), updated.ID)
	assert.Equal(t, "Mouse 2", updated.Name)
	assert.Equal(t, 0, updated.Quantity)

	rec = do(t, h, http.MethodPut, "/products/404", adminTok, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/products", adminTok, "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/products/4", adminTok, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/products/4", adminTok, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/products/4", adminTok, nil).Code)
}

func TestOrders_CreateLaptops(t *testing.T) {
	env := newOrderEnv(t)

	rec := do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{
		"orderLines": []map[string]any{{"productId": 1, "quantity": 3, "price": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, float64(3600), body["totalAmount"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "alice", body["customerId"])
	assert.Equal(t, time.Now().Format(time.DateOnly), body["date"])

	lines := body["orderLines"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, float64(1200), line["price"], "client price ignored")
	assert.Equal(t, float64(1), line["productId"])
	assert.NotContains(t, line, "orderId")
}

func TestOrders_CreateFailures(t *testing.T) {
	env := newOrderEnv(t)

	rec := do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{
		"orderLines": []map[string]any{{"productId": 1, "quantity": 11}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	er := decode[httpx.ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_stock", er.Code)
	assert.Equal(t, map[string]any{"productId": float64(1), "requested": float64(11), "available": float64(10)}, er.Details)

	rec = do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{
		"orderLines": []map[string]any{{"productId": 2, "quantity": 1}, {"productId": 99, "quantity": 1}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	er = decode[httpx.ErrorResponse](t, rec)
	assert.Equal(t, "product_not_found", er.Code)
	assert.Equal(t, "product not found: 99", er.Error)

	rec = do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{
		"orderLines": []map[string]any{{"productId": 2, "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.router, http.MethodPost, "/orders", adminTok, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only USER may order")

	assert.Equal(t, 0, env.store.count())
	p, _ := env.products.Get(context.Background(), 1)
	assert.Equal(t, 10, p.Quantity)
}

func TestOrders_ProductServiceDown(t *testing.T) {
	env := newOrderEnv(t)
	env.upstream.Close()

	rec := do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{
		"orderLines": []map[string]any{{"productId": 1, "quantity": 1}},
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "product_service_unavailable", decode[httpx.ErrorResponse](t, rec).Code)
	assert.Equal(t, 0, env.store.count())
}

func TestOrders_EmptyOrder(t *testing.T) {
	env := newOrderEnv(t)

	rec := do(t, env.router, http.MethodPost, "/orders", userTok, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, float64(0), body["totalAmount"])
	assert.Empty(t, body["orderLines"])
}

func TestOrders_ListAndGet(t *testing.T) {
	env := newOrderEnv(t)
	line := map[string]any{"orderLines": []map[string]any{{"productId": 3, "quantity": 1}}}

	a := decode[map[string]any](t, do(t, env.router, http.MethodPost, "/orders", userTok, line))
	b := decode[map[string]any](t, do(t, env.router, http.MethodPost, "/orders", bobTok, line))

	rec := do(t, env.router, http.MethodGet, "/orders", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = do(t, env.router, http.MethodGet, "/orders", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]map[string]any](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, a["id"], mine[0]["id"])

	rec = do(t, env.router, http.MethodGet, "/orders/1", userTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/orders/2", userTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "bob's order is hidden from alice")
	assert.Equal(t, float64(2), b["id"])

	rec = do(t, env.router, http.MethodGet, "/orders/2", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/orders/nope", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_IdempotencyKey(t *testing.T) {
	env := newOrderEnv(t)
	line := map[string]any{"orderLines": []map[string]any{{"productId": 1, "quantity": 1}}}

	first := do(t, env.router, http.MethodPost, "/orders", userTok, line, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(t, env.router, http.MethodPost, "/orders", userTok, line, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decode[map[string]any](t, first)["id"], decode[map[string]any](t, second)["id"])
	assert.Equal(t, 1, env.store.count())
}
