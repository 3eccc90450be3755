package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	couponapp "github.com/chienpv-3590/order-processing-system/internal/coupon/application"
	coupondomain "github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
	couponmem "github.com/chienpv-3590/order-processing-system/internal/coupon/infrastructure/memory"
	inventoryapp "github.com/chienpv-3590/order-processing-system/internal/inventory/application"
	inventorydomain "github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	inventorymem "github.com/chienpv-3590/order-processing-system/internal/inventory/infrastructure/memory"
	"github.com/chienpv-3590/order-processing-system/internal/order/application"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	ordermem "github.com/chienpv-3590/order-processing-system/internal/order/infrastructure/memory"
	paymentapp "github.com/chienpv-3590/order-processing-system/internal/payment/application"
	paymentdomain "github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	paymentmem "github.com/chienpv-3590/order-processing-system/internal/payment/infrastructure/memory"
	"github.com/shopspring/decimal"
)

// world bundles a full in-memory wiring so each test can poke the backing
// stores after the transaction ran.
type world struct {
	products *inventorymem.Store
	coupons  *couponmem.Store
	accounts *paymentmem.Store
	orders   *ordermem.OrderStore
	sink     *ordermem.Sink
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorld() *world {
	future := time.Now().Add(24 * time.Hour)
	w := &world{
		products: inventorymem.NewStore(
			inventorymem.Product{ID: "sku-a", Name: "Widget A", Price: decimal.NewFromInt(10), Stock: 5},
			inventorymem.Product{ID: "sku-b", Name: "Widget B", Price: decimal.NewFromInt(20), Stock: 1},
		),
		coupons: couponmem.NewStore(
			coupondomain.Coupon{Code: "SAVE20", DiscountPercent: decimal.NewFromInt(20), MaxUses: 2, ExpiresAt: &future},
			coupondomain.Coupon{Code: "GONE", DiscountPercent: decimal.NewFromInt(50), Used: 1, MaxUses: 1},
		),
		accounts: paymentmem.NewStore(
			paymentmem.Account{ID: "rich", Balance: decimal.NewFromInt(1000)},
			paymentmem.Account{ID: "broke", Balance: decimal.NewFromInt(1)},
		),
	}
	w.sink = ordermem.NewSink()
	w.orders = ordermem.NewOrderStore(discardLogger(), w.products, w.sink)
	return w
}

func (w *world) coordinator(orders application.OrderStore) *application.Coordinator {
	log := discardLogger()
	return application.NewCoordinator(
		log,
		inventoryapp.NewService(log, w.products),
		couponapp.NewService(log, w.coupons),
		paymentapp.NewDispatcher(log, w.accounts),
		domain.NewCalculator(domain.DefaultTaxRate),
		orders,
		application.UUIDGenerator{},
	)
}

func request(requester string, lines ...domain.Line) domain.Request {
	return domain.Request{RequesterID: requester, Lines: lines, ShippingAddress: "1 Main St"}
}

func (w *world) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	bal, err := w.accounts.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance lookup: %v", err)
	}
	return bal
}

func TestCreateOrder_SettledFromBalance(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	rec, err := c.CreateOrder(context.Background(), request("rich",
		domain.Line{ProductID: "sku-a", Quantity: 2},
		domain.Line{ProductID: "sku-b", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2*10 + 20 = 40; tax 4; total 44, paid from balance.
	if rec.Status != domain.StatusPaid {
		t.Fatalf("status = %s, want paid", rec.Status)
	}
	if !rec.Pricing.Total.Equal(decimal.NewFromInt(44)) {
		t.Fatalf("total = %s, want 44", rec.Pricing.Total)
	}
	if rec.Payment.Method != paymentdomain.MethodBalance || !rec.Payment.Settled() {
		t.Fatalf("payment = %+v, want settled via balance", rec.Payment)
	}
	if len(rec.Items) != 2 || rec.Items[0].Name != "Widget A" {
		t.Fatalf("items did not capture product details: %+v", rec.Items)
	}

	if got := w.balance(t, "rich"); !got.Equal(decimal.NewFromInt(956)) {
		t.Fatalf("balance = %s, want 956", got)
	}
	if w.products.Stock("sku-a") != 3 || w.products.Stock("sku-b") != 0 {
		t.Fatalf("stock = %d/%d, want 3/0", w.products.Stock("sku-a"), w.products.Stock("sku-b"))
	}

	stored, err := w.orders.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if stored.Status != domain.StatusPaid {
		t.Fatalf("persisted status = %s", stored.Status)
	}

	events := w.sink.Events()
	if len(events) != 2 || events[0].Name != domain.EventOrderCreated || events[1].Name != domain.EventOrderPaid {
		t.Fatalf("events = %+v, want OrderCreated then OrderPaid", events)
	}
}

func TestCreateOrder_DeferredWhenBalanceShort(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	rec, err := c.CreateOrder(context.Background(), request("broke", domain.Line{ProductID: "sku-a", Quantity: 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != domain.StatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", rec.Status)
	}
	if rec.Payment.Status != paymentdomain.StatusDeferred {
		t.Fatalf("payment = %+v, want deferred", rec.Payment)
	}
	if got := w.balance(t, "broke"); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("deferred order touched balance: %s", got)
	}

	events := w.sink.Events()
	if len(events) != 1 || events[0].Name != domain.EventOrderCreated {
		t.Fatalf("events = %+v, want only OrderCreated", events)
	}
}

func TestCreateOrder_CouponDiscountApplied(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	req := request("rich", domain.Line{ProductID: "sku-a", Quantity: 5})
	req.CouponCode = "save20"
	rec, err := c.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// subtotal 50, discount 10, tax 4, total 44.
	if !rec.Pricing.Discount.Equal(decimal.NewFromInt(10)) || !rec.Pricing.Total.Equal(decimal.NewFromInt(44)) {
		t.Fatalf("pricing = %+v", rec.Pricing)
	}
	if w.coupons.Usage("SAVE20") != 1 {
		t.Fatalf("coupon usage = %d, want 1", w.coupons.Usage("SAVE20"))
	}
}

func TestCreateOrder_InsufficientStockAborts(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	_, err := c.CreateOrder(context.Background(), request("rich",
		domain.Line{ProductID: "sku-a", Quantity: 1},
		domain.Line{ProductID: "sku-b", Quantity: 2}, // only 1 in stock
	))
	var insufficient *inventorydomain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}

	if w.products.Stock("sku-a") != 5 || w.products.Stock("sku-b") != 1 {
		t.Fatalf("stock not restored: %d/%d", w.products.Stock("sku-a"), w.products.Stock("sku-b"))
	}
	if w.orders.Len() != 0 {
		t.Fatalf("order persisted despite abort")
	}
	if len(w.sink.Events()) != 0 {
		t.Fatalf("events emitted despite abort: %+v", w.sink.Events())
	}
}

func TestCreateOrder_ExhaustedCouponReleasesStock(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	req := request("rich", domain.Line{ProductID: "sku-a", Quantity: 2})
	req.CouponCode = "GONE"
	_, err := c.CreateOrder(context.Background(), req)
	var exhausted *coupondomain.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want ExhaustedError", err)
	}

	if w.products.Stock("sku-a") != 5 {
		t.Fatalf("stock = %d after coupon abort, want 5", w.products.Stock("sku-a"))
	}
	if got := w.balance(t, "rich"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance touched before coupon step resolved: %s", got)
	}
	if w.orders.Len() != 0 {
		t.Fatalf("order persisted despite abort")
	}
}

func TestCreateOrder_InvalidRequestTouchesNothing(t *testing.T) {
	w := newWorld()
	c := w.coordinator(w.orders)

	_, err := c.CreateOrder(context.Background(), domain.Request{RequesterID: "rich"})
	if !errors.Is(err, domain.ErrEmptyOrder) {
		t.Fatalf("got %v, want ErrEmptyOrder", err)
	}
	if w.products.Stock("sku-a") != 5 || w.orders.Len() != 0 {
		t.Fatal("invalid request reached the stores")
	}
}

// failingOrderStore refuses every write.
type failingOrderStore struct {
	err error
}

func (f *failingOrderStore) Save(ctx context.Context, rec domain.Record, holds []inventorydomain.Reservation, events []domain.Event) error {
	return f.err
}

func (f *failingOrderStore) Get(ctx context.Context, id string) (domain.Record, error) {
	return domain.Record{}, f.err
}

func TestCreateOrder_PersistFailureRollsEverythingBack(t *testing.T) {
	w := newWorld()
	boom := errors.New("write refused")
	c := w.coordinator(&failingOrderStore{err: boom})

	req := request("rich", domain.Line{ProductID: "sku-a", Quantity: 3})
	req.CouponCode = "SAVE20"
	_, err := c.CreateOrder(context.Background(), req)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped store error", err)
	}

	if w.products.Stock("sku-a") != 5 {
		t.Fatalf("stock = %d after persist failure, want 5", w.products.Stock("sku-a"))
	}
	if w.coupons.Usage("SAVE20") != 0 {
		t.Fatalf("coupon usage = %d after persist failure, want 0", w.coupons.Usage("SAVE20"))
	}
	if got := w.balance(t, "rich"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s after persist failure, want refunded 1000", got)
	}
}

// cancellingAccounts deducts normally, then cancels the caller's context, as
// if the client disconnected while payment was in flight.
type cancellingAccounts struct {
	inner  *paymentmem.Store
	cancel context.CancelFunc
}

func (c *cancellingAccounts) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.inner.Balance(ctx, accountID)
}

func (c *cancellingAccounts) TryDeduct(ctx context.Context, accountID string, amount decimal.Decimal) error {
	err := c.inner.TryDeduct(ctx, accountID, amount)
	c.cancel()
	return err
}

func (c *cancellingAccounts) Credit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return c.inner.Credit(ctx, accountID, amount)
}

func TestCreateOrder_CancellationBeforePersistAborts(t *testing.T) {
	w := newWorld()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := discardLogger()
	c := application.NewCoordinator(
		log,
		inventoryapp.NewService(log, w.products),
		couponapp.NewService(log, w.coupons),
		paymentapp.NewDispatcher(log, &cancellingAccounts{inner: w.accounts, cancel: cancel}),
		domain.NewCalculator(domain.DefaultTaxRate),
		w.orders,
		application.UUIDGenerator{},
	)

	_, err := c.CreateOrder(ctx, request("rich", domain.Line{ProductID: "sku-a", Quantity: 1}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// The settled deduction and the stock hold were both rolled back, even
	// though the caller's context was already cancelled.
	if got := w.balance(t, "rich"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s after cancellation, want refunded 1000", got)
	}
	if w.products.Stock("sku-a") != 5 {
		t.Fatalf("stock = %d after cancellation, want 5", w.products.Stock("sku-a"))
	}
	if w.orders.Len() != 0 {
		t.Fatal("order persisted despite cancellation")
	}
}

// lateCancelStore cancels the caller's context mid-write, then checks its
// own: the persist context must not inherit the cancellation.
type lateCancelStore struct {
	inner  *ordermem.OrderStore
	cancel context.CancelFunc
}

func (s *lateCancelStore) Save(ctx context.Context, rec domain.Record, holds []inventorydomain.Reservation, events []domain.Event) error {
	s.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.Save(ctx, rec, holds, events)
}

func (s *lateCancelStore) Get(ctx context.Context, id string) (domain.Record, error) {
	return s.inner.Get(ctx, id)
}

func TestCreateOrder_PersistOutlivesCallerCancellation(t *testing.T) {
	w := newWorld()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := w.coordinator(&lateCancelStore{inner: w.orders, cancel: cancel})

	rec, err := c.CreateOrder(ctx, request("rich", domain.Line{ProductID: "sku-a", Quantity: 1}))
	if err != nil {
		t.Fatalf("write in flight was cut short by caller cancellation: %v", err)
	}
	if _, err := w.orders.Get(context.Background(), rec.ID); err != nil {
		t.Fatalf("order missing after commit: %v", err)
	}
}
