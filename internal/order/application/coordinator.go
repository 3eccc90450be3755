package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	couponapp "github.com/chienpv-3590/order-processing-system/internal/coupon/application"
	coupondomain "github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
	inventoryapp "github.com/chienpv-3590/order-processing-system/internal/inventory/application"
	inventorydomain "github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	paymentapp "github.com/chienpv-3590/order-processing-system/internal/payment/application"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// State names where a running order transaction currently stands. Each
// state's rollback obligations are pushed onto the compensation stack as the
// transaction advances.
type State string

const (
	StateStarted           State = "started"
	StateInventoryReserved State = "inventory_reserved"
	StateCouponApplied     State = "coupon_applied"
	StatePriced            State = "priced"
	StatePaymentAttempted  State = "payment_attempted"
	StatePersisted         State = "persisted"
	StateCommitted         State = "committed"
	StateAborted           State = "aborted"
)

const defaultStepTimeout = 5 * time.Second

// Coordinator runs the order-creation transaction: reserve stock, redeem
// the coupon, price, settle payment, persist, then hand the creation events
// to the sink. Every financial change commits or rolls back together;
// everything downstream of the commit is best-effort.
type Coordinator struct {
	log         *slog.Logger
	inventory   *inventoryapp.Service
	coupons     *couponapp.Service
	payments    *paymentapp.Dispatcher
	pricing     domain.Calculator
	orders      OrderStore
	ids         IdentifierGenerator
	stepTimeout time.Duration
	nowFunc     func() time.Time
	tracer      trace.Tracer
}

func NewCoordinator(
	log *slog.Logger,
	inventory *inventoryapp.Service,
	coupons *couponapp.Service,
	payments *paymentapp.Dispatcher,
	pricing domain.Calculator,
	orders OrderStore,
	ids IdentifierGenerator,
) *Coordinator {
	return &Coordinator{
		log:         log,
		inventory:   inventory,
		coupons:     coupons,
		payments:    payments,
		pricing:     pricing,
		orders:      orders,
		ids:         ids,
		stepTimeout: defaultStepTimeout,
		nowFunc:     time.Now,
		tracer:      otel.Tracer("order-coordinator"),
	}
}

// WithStepTimeout bounds every external call (store write, payment
// dispatch). A timed-out step aborts through the same rollback path as an
// explicit error.
func (c *Coordinator) WithStepTimeout(d time.Duration) *Coordinator {
	c.stepTimeout = d
	return c
}

// CreateOrder runs one transaction attempt. The caller may cancel ctx until
// persistence begins; after that the write runs to completion and the
// cancellation is ignored. Business failures come back as typed errors the
// caller can branch on with errors.As.
func (c *Coordinator) CreateOrder(ctx context.Context, req domain.Request) (domain.Record, error) {
	ctx, span := c.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	if err := req.Validate(); err != nil {
		return domain.Record{}, err
	}

	state := StateStarted
	var undo []func(context.Context)

	// abort runs the compensation stack in reverse order of what succeeded.
	// It uses a cancellation-free context: rollback must complete even when
	// the step that failed did so because the caller went away.
	abort := func(cause error) error {
		from := state
		state = StateAborted
		rctx := context.WithoutCancel(ctx)
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i](rctx)
		}
		if isBusinessError(cause) {
			c.log.InfoContext(ctx, "order transaction aborted", "state", string(from), "reason", cause.Error())
		} else {
			c.log.ErrorContext(ctx, "order transaction aborted on infrastructure failure", "state", string(from), "err", cause)
		}
		return cause
	}

	// 1. Reserve inventory for all lines, all-or-nothing. On failure there
	// is nothing to undo; Reserve released its own partial holds.
	sctx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	reservations, err := c.inventory.Reserve(sctx, req.Lines)
	cancel()
	if err != nil {
		return domain.Record{}, abort(err)
	}
	state = StateInventoryReserved
	undo = append(undo, func(uctx context.Context) {
		uctx, cancel := context.WithTimeout(uctx, c.stepTimeout)
		defer cancel()
		c.inventory.Release(uctx, reservations)
	})

	// 2. Redeem the coupon, if any. Use re-checks the limit atomically.
	var cpn *coupondomain.Coupon
	if req.CouponCode != "" {
		sctx, cancel := context.WithTimeout(ctx, c.stepTimeout)
		found, err := c.coupons.Validate(sctx, req.CouponCode)
		if err == nil {
			err = c.coupons.Use(sctx, req.CouponCode)
		}
		cancel()
		if err != nil {
			return domain.Record{}, abort(err)
		}
		cpn = &found
		state = StateCouponApplied
		undo = append(undo, func(uctx context.Context) {
			uctx, cancel := context.WithTimeout(uctx, c.stepTimeout)
			defer cancel()
			_ = c.coupons.Unuse(uctx, req.CouponCode)
		})
	}

	// 3. Price from the unit prices captured when the holds were granted.
	items := lineItems(reservations)
	pricing, err := c.pricing.Compute(items, cpn)
	if err != nil {
		return domain.Record{}, abort(err)
	}
	state = StatePriced

	// 4. Settle payment. Insufficient balance is a normal deferred outcome;
	// only an infrastructure failure aborts here.
	orderID := c.ids.Next()
	sctx, cancel = context.WithTimeout(ctx, c.stepTimeout)
	outcome, err := c.payments.Dispatch(sctx, req.RequesterID, orderID, pricing.Total)
	cancel()
	if err != nil {
		return domain.Record{}, abort(err)
	}
	state = StatePaymentAttempted
	undo = append(undo, func(uctx context.Context) {
		uctx, cancel := context.WithTimeout(uctx, c.stepTimeout)
		defer cancel()
		_ = c.payments.Rollback(uctx, outcome)
	})

	// 5. Persist and commit. Last cancellation point: once the write is in
	// flight the operation runs to completion.
	if err := ctx.Err(); err != nil {
		return domain.Record{}, abort(fmt.Errorf("order cancelled before persistence: %w", err))
	}

	status := domain.StatusPendingPayment
	if outcome.Settled() {
		status = domain.StatusPaid
	}
	rec := domain.Record{
		ID:              orderID,
		RequesterID:     req.RequesterID,
		Items:           items,
		Pricing:         pricing,
		Payment:         outcome,
		Status:          status,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       c.nowFunc().UTC(),
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.stepTimeout)
	err = c.orders.Save(wctx, rec, reservations, creationEvents(rec))
	cancel()
	if err != nil {
		return domain.Record{}, abort(fmt.Errorf("persist order: %w", err))
	}
	state = StatePersisted

	// 6. The events were queued atomically with the commit; delivery is the
	// sink's problem now and can never reverse the order.
	state = StateCommitted
	c.log.InfoContext(ctx, "order committed",
		"order_id", rec.ID,
		"requester_id", rec.RequesterID,
		"total", rec.Pricing.Total.StringFixed(2),
		"status", string(rec.Status),
		"state", string(state),
	)
	return rec, nil
}

func lineItems(reservations []inventorydomain.Reservation) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(reservations))
	for _, r := range reservations {
		items = append(items, domain.LineItem{
			ProductID: r.ProductID,
			Name:      r.ProductName,
			UnitPrice: r.UnitPrice,
			Quantity:  r.Quantity,
			Subtotal:  r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))),
		})
	}
	return items
}

func creationEvents(rec domain.Record) []domain.Event {
	created, _ := json.Marshal(domain.OrderCreated{
		OrderID:     rec.ID,
		RequesterID: rec.RequesterID,
		Total:       rec.Pricing.Total,
		Status:      rec.Status,
		CouponCode:  rec.CouponCode,
	})
	events := []domain.Event{{Name: domain.EventOrderCreated, Payload: created}}

	if rec.Payment.Settled() {
		paid, _ := json.Marshal(domain.OrderPaid{
			OrderID: rec.ID,
			Method:  rec.Payment.Method,
			Amount:  rec.Payment.Amount,
		})
		events = append(events, domain.Event{Name: domain.EventOrderPaid, Payload: paid})
	}
	return events
}

// isBusinessError separates expected, recoverable-by-caller conditions from
// infrastructure failures, which are additionally alerted on.
func isBusinessError(err error) bool {
	var (
		invalidInput      *domain.InvalidInputError
		insufficientStock *inventorydomain.InsufficientStockError
		productNotFound   *inventorydomain.ProductNotFoundError
		couponNotFound    *coupondomain.NotFoundError
		couponExhausted   *coupondomain.ExhaustedError
		couponExpired     *coupondomain.ExpiredError
	)
	switch {
	case errors.As(err, &invalidInput),
		errors.As(err, &insufficientStock),
		errors.As(err, &productNotFound),
		errors.As(err, &couponNotFound),
		errors.As(err, &couponExhausted),
		errors.As(err, &couponExpired):
		return true
	}
	return false
}
