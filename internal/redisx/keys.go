package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotency for order creation: idem:order:create:{customer}:{key} -> order id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Read cache: order:{id} -> order JSON
	KeyOrder = "order:%d"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 10 * time.Minute
)

func IdemOrderCreateKey(customer, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, customer, key)
}

func OrderKey(id int64) string { return fmt.Sprintf(KeyOrder, id) }
