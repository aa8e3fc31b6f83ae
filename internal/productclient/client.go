// Package productclient calls the product service over HTTP on behalf of the
// order service.
package productclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-services/internal/products"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrUnauthorized = errors.New("product service rejected credentials")
	ErrUnavailable  = errors.New("product service unavailable")
)

type Options struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Transport       http.RoundTripper
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[products.Product]
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 10 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	failures := opts.BreakerFailures
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		breaker: gobreaker.NewCircuitBreaker[products.Product](gobreaker.Settings{
			Name:    "product-service",
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			// a missing product or a bad token says nothing about the
			// health of the product service
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrUnavailable)
			},
		}),
	}
}

// FindProduct fetches product id, relaying the caller's bearer token.
func (c *Client) FindProduct(ctx context.Context, token string, id int64) (products.Product, error) {
	p, err := c.breaker.Execute(func() (products.Product, error) {
		return c.fetch(ctx, token, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return products.Product{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, err
}

func (c *Client) fetch(ctx context.Context, token string, id int64) (products.Product, error) {
	url := c.baseURL + "/products/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return products.Product{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// the caller gave up; that says nothing about the product service
		if ctxErr := ctx.Err(); ctxErr != nil {
			return products.Product{}, ctxErr
		}
		return products.Product{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return products.Product{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return products.Product{}, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		return products.Product{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var p products.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return products.Product{}, ctxErr
		}
		return products.Product{}, fmt.Errorf("%w: decode product: %v", ErrUnavailable, err)
	}
	return p, nil
}
