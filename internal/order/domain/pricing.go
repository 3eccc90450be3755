package domain

import (
	coupondomain "github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied to the discounted subtotal unless overridden.
var DefaultTaxRate = decimal.NewFromFloat(0.10)

var oneHundred = decimal.NewFromInt(100)

// PricingResult holds the monetary breakdown of an order, every component
// rounded to two decimal places. Total == Subtotal - Discount + Tax and
// Discount <= Subtotal always hold.
type PricingResult struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Calculator computes pricing from captured line items and an optional
// coupon. Pure: no I/O, no clock, no randomness.
type Calculator struct {
	TaxRate decimal.Decimal
}

func NewCalculator(taxRate decimal.Decimal) Calculator {
	return Calculator{TaxRate: taxRate}
}

// Compute sums the lines at full precision and rounds half-up at the
// subtotal level only; per-line rounding would compound error across lines.
// The discount is clamped so it can never exceed the subtotal.
func (c Calculator) Compute(items []LineItem, cpn *coupondomain.Coupon) (PricingResult, error) {
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return PricingResult{}, &InvalidInputError{Reason: "line quantity must be positive"}
		}
		if it.UnitPrice.IsNegative() {
			return PricingResult{}, &InvalidInputError{Reason: "unit price must not be negative"}
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	subtotal := sum.Round(2)

	discount := decimal.Zero
	if cpn != nil {
		if cpn.DiscountPercent.IsNegative() || cpn.DiscountPercent.GreaterThan(oneHundred) {
			return PricingResult{}, &InvalidInputError{Reason: "coupon percentage must be between 0 and 100"}
		}
		discount = subtotal.Mul(cpn.DiscountPercent).Div(oneHundred).Round(2)
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(c.TaxRate).Round(2)
	total := taxable.Add(tax)

	return PricingResult{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    total,
	}, nil
}
