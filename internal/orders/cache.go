package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-shop-services/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds read copies of orders and idempotency keys for creation.
// Orders never change after they are stored, so cached copies never go stale.
type RedisCache struct{ R *redis.Client }

func (c *RedisCache) GetOrder(ctx context.Context, id int64) (Order, bool, error) {
	b, err := c.R.Get(ctx, redisx.OrderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("get cached order %d: %w", id, err)
	}
	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, false, fmt.Errorf("decode cached order %d: %w", id, err)
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	return o, true, nil
}

func (c *RedisCache) PutOrder(ctx context.Context, o Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %d: %w", o.ID, err)
	}
	return c.R.Set(ctx, redisx.OrderKey(o.ID), b, redisx.TTLOrderCache).Err()
}

// LookupIdempotent returns the order id stored for customer's key, if any.
func (c *RedisCache) LookupIdempotent(ctx context.Context, customer, key string) (int64, bool, error) {
	s, err := c.R.Get(ctx, redisx.IdemOrderCreateKey(customer, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get idempotency key: %w", err)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse idempotency value %q: %w", s, err)
	}
	return id, true, nil
}

func (c *RedisCache) RememberIdempotent(ctx context.Context, customer, key string, orderID int64) error {
	return c.R.Set(ctx, redisx.IdemOrderCreateKey(customer, key), orderID, redisx.TTLIdempotency).Err()
}
