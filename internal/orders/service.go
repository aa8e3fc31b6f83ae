package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-services/internal/auth"
	"github.com/ariefcatur/go-shop-services/internal/kafka"
	"github.com/ariefcatur/go-shop-services/internal/logger"
	"github.com/ariefcatur/go-shop-services/internal/productclient"
	"github.com/ariefcatur/go-shop-services/internal/products"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductFinder interface {
	FindProduct(ctx context.Context, token string, id int64) (products.Product, error)
}

type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customer string) ([]Order, error)
}

type Cache interface {
	GetOrder(ctx context.Context, id int64) (Order, bool, error)
	PutOrder(ctx context.Context, o Order) error
	LookupIdempotent(ctx context.Context, customer, key string) (int64, bool, error)
	RememberIdempotent(ctx context.Context, customer, key string, orderID int64) error
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Service owns order creation and retrieval. Cache and Events are optional.
type Service struct {
	Store    Store
	Products ProductFinder
	Cache    Cache
	Events   Publisher
	Log      *zap.Logger
	Name     string // producer name stamped on events
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	l := s.Log
	if l == nil {
		l = zap.NewNop()
	}
	return logger.FromContext(ctx, l)
}

// Create prices every line from the product service, checks stock, and stores
// the order. Lines are checked in the order given and the first failure
// aborts the whole order before anything is written.
//
// The stock check is a point-in-time read: stock is not reserved, so two
// concurrent orders may both pass against the same units.
func (s *Service) Create(ctx context.Context, caller auth.Principal, in []LineInput) (Order, error) {
	o := Order{
		Date:        dateOnly(s.now()),
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		CustomerID:  caller.Username,
		Lines:       make([]Line, 0, len(in)),
	}

	for _, li := range in {
		if li.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity for product %d must be positive", ErrInvalidOrder, li.ProductID)
		}
		p, err := s.Products.FindProduct(ctx, caller.Token, li.ProductID)
		if err != nil {
			return Order{}, translateProductErr(li.ProductID, err)
		}
		if p.Quantity < li.Quantity {
			return Order{}, &StockError{ProductID: li.ProductID, Requested: li.Quantity, Available: p.Quantity}
		}
		o.Lines = append(o.Lines, Line{ProductID: li.ProductID, Quantity: li.Quantity, Price: p.Price})
		o.TotalAmount = o.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}

	stored, err := s.Store.Create(ctx, o)
	if err != nil {
		return Order{}, fmt.Errorf("store order: %w", err)
	}
	s.log(ctx).Info("order created",
		zap.Int64("order_id", stored.ID),
		zap.String("customer", stored.CustomerID),
		zap.String("total", stored.TotalAmount.String()),
		zap.Int("lines", len(stored.Lines)),
	)

	s.afterCreate(ctx, stored)
	return stored, nil
}

// CreateIdempotent behaves like Create, except that a key already used by
// the same customer returns the order created the first time. replayed
// reports whether that happened. An empty key disables the check.
func (s *Service) CreateIdempotent(ctx context.Context, caller auth.Principal, key string, in []LineInput) (o Order, replayed bool, err error) {
	if key == "" || s.Cache == nil {
		o, err = s.Create(ctx, caller, in)
		return o, false, err
	}

	id, ok, err := s.Cache.LookupIdempotent(ctx, caller.Username, key)
	if err != nil {
		s.log(ctx).Warn("idempotency lookup failed", zap.Error(err))
	}
	if ok {
		o, err := s.Get(ctx, caller, id)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Order{}, false, err
		}
	}

	o, err = s.Create(ctx, caller, in)
	if err != nil {
		return Order{}, false, err
	}
	if err := s.Cache.RememberIdempotent(ctx, caller.Username, key, o.ID); err != nil {
		s.log(ctx).Warn("store idempotency key", zap.Error(err))
	}
	return o, false, nil
}

func (s *Service) afterCreate(ctx context.Context, o Order) {
	if s.Cache != nil {
		if err := s.Cache.PutOrder(ctx, o); err != nil {
			s.log(ctx).Warn("cache order", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
	if s.Events == nil {
		return
	}
	ev, err := NewOrderCreated(o, s.Name, traceID(ctx), s.now())
	if err != nil {
		s.log(ctx).Error("build order event", zap.Error(err))
		return
	}
	err = s.Events.Publish(ctx, PartitionKey(o.ID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		s.log(ctx).Warn("publish order event", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

// List returns every order to admins and only their own orders to everyone
// else.
func (s *Service) List(ctx context.Context, caller auth.Principal) ([]Order, error) {
	if caller.IsAdmin() {
		return s.Store.List(ctx)
	}
	return s.Store.ListByCustomer(ctx, caller.Username)
}

// Get returns order id. Orders belonging to another customer are reported as
// missing unless the caller is an admin.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id int64) (Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !caller.IsAdmin() && o.CustomerID != caller.Username {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) load(ctx context.Context, id int64) (Order, error) {
	if s.Cache != nil {
		o, ok, err := s.Cache.GetOrder(ctx, id)
		if err != nil {
			s.log(ctx).Warn("order cache read", zap.Int64("order_id", id), zap.Error(err))
		}
		if ok {
			return o, nil
		}
	}

	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if s.Cache != nil {
		if err := s.Cache.PutOrder(ctx, o); err != nil {
			s.log(ctx).Warn("cache order", zap.Int64("order_id", id), zap.Error(err))
		}
	}
	return o, nil
}

func translateProductErr(id int64, err error) error {
	switch {
	case errors.Is(err, productclient.ErrNotFound):
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	case errors.Is(err, productclient.ErrUnavailable), errors.Is(err, productclient.ErrUnauthorized),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrProductServiceUnavailable, err)
	default:
		return fmt.Errorf("find product %d: %w", id, err)
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// traceID prefers the OpenTelemetry trace id and falls back to the chi
// request id.
func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return middleware.GetReqID(ctx)
}
