package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a percentage discount with a bounded number of redemptions.
// The percentage a past order was priced with is frozen into that order's
// pricing at commit time; editing a coupon never rewrites history.
type Coupon struct {
	Code            string
	DiscountPercent decimal.Decimal
	Used            int
	MaxUses         int
	ExpiresAt       *time.Time
}

func (c Coupon) Exhausted() bool {
	return c.Used >= c.MaxUses
}

func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
