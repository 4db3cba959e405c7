// Package checkout turns a customer's cart into a persisted order.
//
// Header and lines are written as one unit: inside a database transaction
// when the repository supports it, otherwise with a compensating delete of
// the header when a line fails. The cart is only cleared after the order is
// fully stored.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"b2b-storefront/auth"
	"b2b-storefront/cart"
	"b2b-storefront/catalog"
	"b2b-storefront/delivery"
	"b2b-storefront/errs"
	"b2b-storefront/events"
	"b2b-storefront/middlewares"
	"b2b-storefront/models"
	"b2b-storefront/orders"
	"b2b-storefront/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMinimum is the smallest discounted total accepted at checkout.
var DefaultMinimum = decimal.NewFromInt(20000)

// Scheduler receives follow-up events due at a future time.
type Scheduler interface {
	ScheduleOrderEvent(ctx context.Context, ev models.OrderEvent, at time.Time) error
}

type Result struct {
	OrderID      int64              `json:"order_id"`
	Total        decimal.Decimal    `json:"total"`
	DeliveryDate time.Time          `json:"fecha_entrega"`
	Lines        []models.OrderLine `json:"items"`
	Summary      pricing.Summary    `json:"resumen"`
	Replayed     bool               `json:"replayed,omitempty"`
}

type Options struct {
	Minimum        decimal.Decimal
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

type Workflow struct {
	catalog   catalog.Accessor
	carts     cart.Store
	repo      orders.Repository
	pricing   *pricing.Engine
	delivery  *delivery.Scheduler
	publisher events.Publisher
	scheduler Scheduler
	logger    *zap.Logger

	minimum decimal.Decimal
	now     func() time.Time
	guard   *guard
}

func NewWorkflow(
	accessor catalog.Accessor,
	carts cart.Store,
	repo orders.Repository,
	engine *pricing.Engine,
	deliveries *delivery.Scheduler,
	publisher events.Publisher,
	logger *zap.Logger,
	opts Options,
) *Workflow {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		catalog:   accessor,
		carts:     carts,
		repo:      repo,
		pricing:   engine,
		delivery:  deliveries,
		publisher: publisher,
		logger:    logger,
		minimum:   opts.Minimum,
		now:       opts.Now,
	}
	if w.minimum.IsZero() {
		w.minimum = DefaultMinimum
	}
	if w.now == nil {
		w.now = time.Now
	}
	if opts.IdempotencyTTL > 0 {
		w.guard = newGuard(opts.IdempotencyTTL, w.now)
	}
	return w
}

// WithScheduler sets where delivery-due reminders go.
func (w *Workflow) WithScheduler(s Scheduler) *Workflow {
	w.scheduler = s
	return w
}

// Minimum returns the smallest discounted total accepted at checkout.
func (w *Workflow) Minimum() decimal.Decimal {
	return w.minimum
}

// Quote prices the actor's current cart without placing anything.
func (w *Workflow) Quote(ctx context.Context, actor auth.Actor) (pricing.Summary, cart.Cart, error) {
	if !actor.Authenticated() {
		return pricing.Summary{}, nil, errs.NewUnauthenticated(errs.ErrMsgActorRequired)
	}
	c, err := w.carts.Get(ctx, actor.ID)
	if err != nil {
		w.logger.Error("load cart failed", zap.String("customer_id", actor.ID), zap.Error(err))
		return pricing.Summary{}, nil, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	products, err := w.catalog.ByIDs(ctx, c.IDs())
	if err != nil {
		w.logger.Error("load products failed", zap.String("customer_id", actor.ID), zap.Error(err))
		return pricing.Summary{}, nil, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	return w.pricing.Price(products, c), c, nil
}

// Checkout places the actor's cart as an order. idempotencyKey may be empty;
// when set, a repeat within the TTL returns the first result.
func (w *Workflow) Checkout(ctx context.Context, actor auth.Actor, idempotencyKey string) (*Result, error) {
	if !actor.Authenticated() {
		return nil, errs.NewUnauthenticated(errs.ErrMsgActorRequired)
	}
	if w.guard != nil && idempotencyKey != "" {
		release, prior, err := w.guard.acquire(ctx, actor.ID, idempotencyKey)
		if err != nil {
			return nil, &errs.Error{Code: errs.FailedPrecondition, Message: errs.ErrMsgCheckoutInProgress, Err: err}
		}
		if prior != nil {
			replay := *prior
			replay.Replayed = true
			return &replay, nil
		}
		var res *Result
		defer func() { release(res) }()
		res, err = w.checkout(ctx, actor)
		return res, err
	}
	return w.checkout(ctx, actor)
}

func (w *Workflow) checkout(ctx context.Context, actor auth.Actor) (*Result, error) {
	c, err := w.carts.Get(ctx, actor.ID)
	if err != nil {
		w.logger.Error("load cart failed", zap.String("customer_id", actor.ID), zap.Error(err))
		return nil, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	if len(c) == 0 {
		return nil, errs.NewFailedPrecondition(errs.ErrMsgCartEmpty)
	}

	products, err := w.catalog.ByIDs(ctx, c.IDs())
	if err != nil {
		w.logger.Error("load products failed", zap.String("customer_id", actor.ID), zap.Error(err))
		return nil, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	for _, id := range c.IDs() {
		if _, ok := products[id]; !ok {
			return nil, errs.NewFailedPreconditionf("%s: %s", errs.ErrMsgProductUnavailable, id)
		}
	}

	summary := w.pricing.Price(products, c)
	if summary.TotalWithDiscount.LessThan(w.minimum) {
		return nil, errs.NewFailedPreconditionf("%s (%s)", errs.ErrMsgBelowMinimum, pricing.Format(w.minimum))
	}

	now := w.now()
	order := &models.Order{
		CustomerID:   actor.ID,
		CreatedBy:    models.CreatedByWeb,
		Status:       models.StatusPending,
		Total:        summary.TotalWithDiscount,
		DeliveryDate: w.delivery.DeliveryDate(now),
		CreatedAt:    now,
	}
	lines := make([]models.OrderLine, 0, len(summary.Lines))
	for _, q := range summary.Lines {
		p := products[q.ProductID]
		lines = append(lines, models.OrderLine{
			ProductID: p.ID,
			Article:   p.Article,
			Name:      p.Name,
			Quantity:  q.Quantity,
			UnitPrice: q.ChargedUnitPrice,
			Subtotal:  q.Subtotal,
		})
	}

	if err := w.persist(ctx, order, lines); err != nil {
		return nil, err
	}
	order.Lines = lines

	if err := w.carts.Clear(ctx, actor.ID); err != nil {
		w.logger.Warn("order placed but cart not cleared", zap.Int64("order_id", order.ID), zap.String("customer_id", actor.ID), zap.Error(err))
	}
	w.announce(ctx, *order)

	w.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("customer_id", actor.ID),
		zap.String("total", order.Total.String()),
		zap.Int("lines", len(lines)),
		zap.Time("delivery_date", order.DeliveryDate),
	)
	return &Result{
		OrderID:      order.ID,
		Total:        order.Total,
		DeliveryDate: order.DeliveryDate,
		Lines:        lines,
		Summary:      summary,
	}, nil
}

// persist writes header then lines, filling in the generated ids.
func (w *Workflow) persist(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	write := func(repo orders.Repository) error {
		id, err := repo.CreateHeader(ctx, order)
		if err != nil {
			return &headerError{err: err}
		}
		order.ID = id
		for i := range lines {
			lines[i].OrderID = id
			lineID, err := repo.AddLine(ctx, &lines[i])
			if err != nil {
				return &lineError{orderID: id, productID: lines[i].ProductID, err: err}
			}
			lines[i].ID = lineID
		}
		return nil
	}

	if tx, ok := w.repo.(orders.Transactor); ok {
		err := tx.WithinTx(ctx, write)
		if err != nil {
			order.ID = 0
			w.logger.Error("order transaction failed", zap.String("customer_id", order.CustomerID), zap.Error(err))
			return errs.Wrap(err, errs.ErrMsgPersistence)
		}
		return nil
	}

	err := write(w.repo)
	if err == nil {
		return nil
	}
	var le *lineError
	if errors.As(err, &le) {
		w.logger.Error("order line failed, removing partial order",
			zap.Int64("order_id", le.orderID), zap.String("product_id", le.productID), zap.Error(le.err))
		if delErr := w.repo.DeleteOrder(ctx, le.orderID); delErr != nil {
			w.logger.Error("partial order left behind", zap.Int64("order_id", le.orderID), zap.Error(delErr))
			middlewares.RecordPartialOrder()
		}
		order.ID = 0
		return errs.Wrap(err, errs.ErrMsgPersistence)
	}
	w.logger.Error("order header failed", zap.String("customer_id", order.CustomerID), zap.Error(err))
	return errs.Wrap(err, errs.ErrMsgPersistence)
}

func (w *Workflow) announce(ctx context.Context, o models.Order) {
	payload := orders.OrderEvent(o, events.TypeOrderCreated)
	if err := w.publisher.Publish(ctx, events.New(events.TopicOrders, events.TypeOrderCreated, o.CustomerID, payload)); err != nil {
		w.logger.Warn("publish order created failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	if w.scheduler == nil {
		return
	}
	due := orders.OrderEvent(o, events.TypeOrderDeliveryDue)
	if err := w.scheduler.ScheduleOrderEvent(ctx, due, o.DeliveryDate); err != nil {
		w.logger.Warn("schedule delivery reminder failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

type headerError struct{ err error }

func (e *headerError) Error() string { return fmt.Sprintf("create order header: %v", e.err) }
func (e *headerError) Unwrap() error { return e.err }

type lineError struct {
	orderID   int64
	productID string
	err       error
}

func (e *lineError) Error() string {
	return fmt.Sprintf("create line for order %d product %s: %v", e.orderID, e.productID, e.err)
}
func (e *lineError) Unwrap() error { return e.err }
