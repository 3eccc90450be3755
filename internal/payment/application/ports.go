package application

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountStore is the narrow contract a balance backend must satisfy.
// Only balance-eligible accounts exist in the store; an unknown id fails
// with *domain.AccountNotFoundError.
type AccountStore interface {
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// TryDeduct checks and deducts as one atomic operation. Fails with
	// *domain.InsufficientFundsError with zero balance mutated; separate
	// read+write would double-spend under concurrent orders.
	TryDeduct(ctx context.Context, accountID string, amount decimal.Decimal) error

	// Credit returns a deducted amount. Used only for rollback.
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) error
}
