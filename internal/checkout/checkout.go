// Package checkout turns a cart into an order: it re-validates every line
// against live stock, reserves the stock, submits the order and only then
// removes the purchased lines from the cart. Any failure before submission
// leaves stock and cart as they were.
package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fjod/go_cart/storefront/internal/checkout"

// CartSource is the cart being checked out.
type CartSource interface {
	Snapshot() domain.Cart
	// Consume removes the given lines' quantities, leaving anything added
	// after the snapshot in place.
	Consume(ctx context.Context, items []domain.LineItem) error
}

type Config struct {
	Policy            pricing.Policy
	Currency          string
	LookupConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Policy:            pricing.DefaultPolicy(),
		Currency:          "CLP",
		LookupConcurrency: 4,
	}
}

type Receipt struct {
	OrderID string          `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
	Order   *domain.Order   `json:"order"`
	State   State           `json:"state"`
}

type Option func(*Orchestrator)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(instrumentationName) }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) { o.meter = mp.Meter(instrumentationName) }
}

type Orchestrator struct {
	inventory inventory.Service
	orders    orders.Repository
	publisher events.Publisher
	cfg       Config
	logger    *zap.Logger

	tracer   trace.Tracer
	meter    metric.Meter
	attempts metric.Int64Counter

	mu       sync.Mutex
	inFlight map[string]struct{}
	stock    *productLocks
}

func NewOrchestrator(
	inv inventory.Service,
	repo orders.Repository,
	publisher events.Publisher,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.LookupConcurrency < 1 {
		cfg.LookupConcurrency = 1
	}

	o := &Orchestrator{
		inventory: inv,
		orders:    repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    log.Named("checkout"),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		inFlight:  make(map[string]struct{}),
		stock:     newProductLocks(),
	}
	for _, opt := range opts {
		opt(o)
	}

	attempts, err := o.meter.Int64Counter("storefront.checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create checkout counter: %w", err)
	}
	o.attempts = attempts
	return o, nil
}

// attempt is the working state of one Checkout call.
type attempt struct {
	id    string
	state State
	user  *domain.User
	cart  domain.Cart

	// productOrder lists distinct product ids in first-appearance order.
	productOrder []int64
	working      map[int64]*domain.Product
	applied      []int64
}

func (a *attempt) transition(to State) error {
	if !CanTransitionTo(a.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, to)
	}
	a.state = to
	return nil
}

// Checkout places an order for the cart's contents on behalf of user.
// Failures are *domain.Error values carrying a customer-facing reason.
func (o *Orchestrator) Checkout(ctx context.Context, cart CartSource, user *domain.User) (receipt *Receipt, err error) {
	const op = "checkout"

	ctx, span := o.tracer.Start(ctx, "checkout")
	defer span.End()

	a := &attempt{id: uuid.New().String(), state: StateIdle, user: user}
	span.SetAttributes(attribute.String("checkout.id", a.id))
	log := logger.WithTrace(ctx, o.logger).With(zap.String("checkout_id", a.id))

	defer func() {
		outcome := StateSucceeded.String()
		if err != nil {
			outcome = domain.KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, domain.ReasonOf(err))
			log.Warn("checkout failed", zap.String("state", a.state.String()), zap.Error(err))
		}
		o.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	if user == nil {
		_ = a.transition(StateFailed)
		return nil, domain.NewError(domain.KindAuthenticationRequired, op, reasonAuthRequired, nil)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	log = log.With(zap.String("user_id", user.ID))

	a.cart = cart.Snapshot()
	if a.cart.IsEmpty() {
		_ = a.transition(StateFailed)
		return nil, domain.NewError(domain.KindInvalidArgument, op, reasonEmptyCart, nil)
	}

	if !o.acquire(user.ID) {
		_ = a.transition(StateFailed)
		return nil, domain.NewError(domain.KindConflict, op, reasonInFlight, nil)
	}
	defer o.release(user.ID)

	order, err := o.place(ctx, a)
	if err != nil {
		return nil, err
	}

	if err := a.transition(StateSucceeded); err != nil {
		return nil, err
	}
	span.AddEvent(StateSucceeded.String(), trace.WithAttributes(attribute.String("order.id", order.ID)))
	o.complete(ctx, cart, a.cart.Items, order, log)

	log.Info("checkout succeeded",
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.String()),
		zap.Int("items", a.cart.ItemCount))

	return &Receipt{OrderID: order.ID, Total: order.Total, Order: order, State: a.state}, nil
}

// place validates, reserves and submits while holding every cart product's
// lock, so no other checkout reads or writes those products in between.
func (o *Orchestrator) place(ctx context.Context, a *attempt) (*domain.Order, error) {
	unlock := o.stock.lock(distinctProducts(a.cart.Items))
	defer unlock()

	if err := o.step(ctx, a, StateValidating, o.validate); err != nil {
		return nil, err
	}
	if err := o.step(ctx, a, StateReserving, o.reserve); err != nil {
		return nil, err
	}

	var order *domain.Order
	submit := func(ctx context.Context, a *attempt) error {
		var err error
		order, err = o.submit(ctx, a)
		return err
	}
	if err := o.step(ctx, a, StateSubmitting, submit); err != nil {
		return nil, err
	}
	return order, nil
}

// step enters state and runs fn; an error from fn moves the attempt to failed.
func (o *Orchestrator) step(ctx context.Context, a *attempt, state State, fn func(context.Context, *attempt) error) error {
	if err := a.transition(state); err != nil {
		return err
	}
	trace.SpanFromContext(ctx).AddEvent(state.String())
	if err := fn(ctx, a); err != nil {
		_ = a.transition(StateFailed)
		return err
	}
	return nil
}

// complete takes the ordered lines out of the cart and announces the order.
// Neither can fail the checkout any more; the order exists.
func (o *Orchestrator) complete(ctx context.Context, cart CartSource, ordered []domain.LineItem, order *domain.Order, log *zap.Logger) {
	if err := cart.Consume(ctx, ordered); err != nil {
		log.Error("failed to remove ordered items from cart", zap.String("order_id", order.ID), zap.Error(err))
	}
	if err := o.publisher.PublishOrderPlaced(ctx, events.NewOrderPlaced(order)); err != nil {
		log.Error("failed to publish order placed", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (o *Orchestrator) acquire(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[userID]; busy {
		return false
	}
	o.inFlight[userID] = struct{}{}
	return true
}

func (o *Orchestrator) release(userID string) {
	o.mu.Lock()
	delete(o.inFlight, userID)
	o.mu.Unlock()
}
