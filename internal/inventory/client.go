package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("inventory backend unavailable")

// Client talks to the inventory backend over HTTP.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	timeout time.Duration
}

var _ Service = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	cfg := circuitbreaker.DefaultConfig("inventory")
	cfg.Ignore = func(err error) bool { return errors.Is(err, ErrProductNotFound) }

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
			SetHeader("Accept", "application/json"),
		breaker: circuitbreaker.New[*resty.Response](cfg, logger),
		timeout: timeout,
	}
}

func (c *Client) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var product domain.Product
	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("id", strconv.FormatInt(id, 10)).
			SetResult(&product).
			ForceContentType("application/json").
			Get("/products/{id}")
		if err != nil {
			return nil, fmt.Errorf("get product %d: %w", id, err)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return resp, ErrProductNotFound
		case resp.IsError():
			return resp, fmt.Errorf("get product %d: unexpected status %d", id, resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		return nil, wrapBreakerError(err)
	}
	return &product, nil
}

func (c *Client) UpdateProductStock(ctx context.Context, id int64, update StockUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("id", strconv.FormatInt(id, 10)).
			SetBody(update).
			Patch("/products/{id}/stock")
		if err != nil {
			return nil, fmt.Errorf("update stock of product %d: %w", id, err)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return resp, ErrProductNotFound
		case resp.IsError():
			return resp, fmt.Errorf("update stock of product %d: unexpected status %d", id, resp.StatusCode())
		}
		return resp, nil
	})
	return wrapBreakerError(err)
}

func wrapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
