package application

import (
	"context"

	"github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/shopspring/decimal"
)

// ProductStore is the narrow contract a product backend must satisfy.
// TryReserve must check availability and decrement as one atomic step from
// the store's perspective; two concurrent holds on the same product may
// never together exceed available stock.
type ProductStore interface {
	UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error)

	// TryReserve places a hold on qty units, capturing name and unit price
	// in the same atomic step. Fails with *domain.InsufficientStockError or
	// *domain.ProductNotFoundError.
	TryReserve(ctx context.Context, productID string, qty int) (domain.Reservation, error)

	// Release returns a held quantity to availability. Idempotent: an
	// already-released or already-committed token is a no-op.
	Release(ctx context.Context, token string) error

	// Commit converts a hold into a permanent deduction. Called only once
	// the surrounding transaction is guaranteed to succeed.
	Commit(ctx context.Context, token string) error
}
