package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client is the sales backend over HTTP.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	timeout time.Duration
}

var _ Repository = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	cfg := circuitbreaker.DefaultConfig("sales")
	cfg.Ignore = func(err error) bool {
		return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrDuplicateCheckout)
	}

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
			SetHeader("Accept", "application/json"),
		breaker: circuitbreaker.New[*resty.Response](cfg, logger),
		timeout: timeout,
	}
}

func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetHeader("Idempotency-Key", draft.CheckoutID).
			SetBody(draft).
			SetResult(&order).
			Post("/orders")
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("create order: backend returned no order")
	}
	return &order, nil
}

func (c *Client) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("id", id).
			SetResult(&order).
			Get("/orders/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	err := c.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetQueryParam("userId", userID).
			SetResult(&orders).
			Get("/orders")
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// do runs one request through the breaker and maps status codes to errors.
func (c *Client) do(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := send(c.http.R().SetContext(ctx).ForceContentType("application/json"))
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return resp, ErrOrderNotFound
		case resp.StatusCode() == http.StatusConflict:
			return resp, ErrDuplicateCheckout
		case resp.IsError():
			return resp, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
