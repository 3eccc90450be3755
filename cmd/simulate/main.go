// Command simulate drives the order engine end to end against the in-memory
// stores: a few successful checkouts, a coupon-discounted one, a deferred
// settlement, and an out-of-stock failure, printing what each attempt did.
package main

import (
	"context"
	"fmt"
	"time"

	couponapp "github.com/chienpv-3590/order-processing-system/internal/coupon/application"
	coupondomain "github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
	couponmem "github.com/chienpv-3590/order-processing-system/internal/coupon/infrastructure/memory"
	inventoryapp "github.com/chienpv-3590/order-processing-system/internal/inventory/application"
	inventorymem "github.com/chienpv-3590/order-processing-system/internal/inventory/infrastructure/memory"
	"github.com/chienpv-3590/order-processing-system/internal/order/application"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	ordermem "github.com/chienpv-3590/order-processing-system/internal/order/infrastructure/memory"
	paymentapp "github.com/chienpv-3590/order-processing-system/internal/payment/application"
	paymentmem "github.com/chienpv-3590/order-processing-system/internal/payment/infrastructure/memory"
	"github.com/chienpv-3590/order-processing-system/pkg/logging"
	"github.com/shopspring/decimal"
)

func main() {
	log := logging.New()
	ctx := context.Background()

	products := inventorymem.NewStore(
		inventorymem.Product{ID: "sku-keyboard", Name: "Mechanical Keyboard", Price: decimal.NewFromFloat(89.90), Stock: 10},
		inventorymem.Product{ID: "sku-mouse", Name: "Wireless Mouse", Price: decimal.NewFromFloat(34.50), Stock: 5},
		inventorymem.Product{ID: "sku-monitor", Name: "27in Monitor", Price: decimal.NewFromFloat(249.00), Stock: 1},
	)
	soon := time.Now().Add(24 * time.Hour)
	coupons := couponmem.NewStore(
		coupondomain.Coupon{Code: "WELCOME10", DiscountPercent: decimal.NewFromInt(10), MaxUses: 2, ExpiresAt: &soon},
	)
	accounts := paymentmem.NewStore(
		paymentmem.Account{ID: "alice", Balance: decimal.NewFromInt(500)},
		paymentmem.Account{ID: "bob", Balance: decimal.NewFromInt(20)},
	)

	sink := ordermem.NewSink()
	orders := ordermem.NewOrderStore(log, products, sink)

	coordinator := application.NewCoordinator(
		log,
		inventoryapp.NewService(log, products),
		couponapp.NewService(log, coupons),
		paymentapp.NewDispatcher(log, accounts),
		domain.NewCalculator(domain.DefaultTaxRate),
		orders,
		application.UUIDGenerator{},
	)

	requests := []struct {
		label string
		req   domain.Request
	}{
		{"plain checkout, settled from balance", domain.Request{
			RequesterID:     "alice",
			Lines:           []domain.Line{{ProductID: "sku-keyboard", Quantity: 1}, {ProductID: "sku-mouse", Quantity: 2}},
			ShippingAddress: "1 Main St",
		}},
		{"discounted checkout with WELCOME10", domain.Request{
			RequesterID:     "alice",
			Lines:           []domain.Line{{ProductID: "sku-monitor", Quantity: 1}},
			CouponCode:      "welcome10",
			ShippingAddress: "1 Main St",
		}},
		{"balance too low, falls back to deferred settlement", domain.Request{
			RequesterID:     "bob",
			Lines:           []domain.Line{{ProductID: "sku-keyboard", Quantity: 1}},
			ShippingAddress: "2 Side Ave",
		}},
		{"monitor already sold out, whole order aborts", domain.Request{
			RequesterID:     "alice",
			Lines:           []domain.Line{{ProductID: "sku-monitor", Quantity: 1}},
			ShippingAddress: "1 Main St",
		}},
	}

	for i, r := range requests {
		fmt.Printf("[%d] %s\n", i+1, r.label)
		rec, err := coordinator.CreateOrder(ctx, r.req)
		if err != nil {
			fmt.Printf("    aborted: %v\n", err)
			continue
		}
		fmt.Printf("    order %s  status=%s  method=%s\n", rec.ID, rec.Status, rec.Payment.Method)
		fmt.Printf("    subtotal=%s discount=%s tax=%s total=%s\n",
			rec.Pricing.Subtotal, rec.Pricing.Discount, rec.Pricing.Tax, rec.Pricing.Total)
	}

	fmt.Printf("\ncommitted orders: %d\n", orders.Len())
	for _, e := range sink.Events() {
		fmt.Printf("event %s  %s\n", e.Name, e.Payload)
	}
}
