package application

import (
	"context"

	"github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
)

// CouponStore is the narrow contract a coupon backend must satisfy.
// TryIncrementUsage must re-check usage < limit at increment time as one
// atomic step; validate-then-use alone is a race.
type CouponStore interface {
	// Find looks the coupon up by (already normalized) code. Fails with
	// *domain.NotFoundError.
	Find(ctx context.Context, code string) (domain.Coupon, error)

	// TryIncrementUsage atomically increments usage while it is below the
	// limit. Fails with *domain.ExhaustedError or *domain.NotFoundError.
	TryIncrementUsage(ctx context.Context, code string) error

	// DecrementUsage gives a redemption back. Used only for rollback.
	DecrementUsage(ctx context.Context, code string) error
}
