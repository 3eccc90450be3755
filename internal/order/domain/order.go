package domain

import (
	"strings"
	"time"

	paymentdomain "github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
)

// Line is one requested product/quantity pair.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Request is the immutable input to order creation.
type Request struct {
	RequesterID     string `json:"requester_id"`
	Lines           []Line `json:"lines"`
	CouponCode      string `json:"coupon_code,omitempty"`
	ShippingAddress string `json:"shipping_address"`
}

// Validate rejects malformed requests before any resource is touched.
func (r Request) Validate() error {
	if strings.TrimSpace(r.RequesterID) == "" {
		return ErrNoRequester
	}
	if len(r.Lines) == 0 {
		return ErrEmptyOrder
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return ErrNoShippingAddress
	}
	for _, l := range r.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return &InvalidInputError{Reason: "order line is missing a product id"}
		}
		if l.Quantity <= 0 {
			return &InvalidInputError{Reason: "order line quantity must be positive"}
		}
	}
	return nil
}

// LineItem is a line with the name and unit price captured at purchase time.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Record is the persisted result of a committed order transaction.
// Immutable once created, except for status transitions owned by the order
// lifecycle service.
type Record struct {
	ID              string                `json:"id"`
	RequesterID     string                `json:"requester_id"`
	Items           []LineItem            `json:"items"`
	Pricing         PricingResult         `json:"pricing"`
	Payment         paymentdomain.Outcome `json:"payment"`
	Status          Status                `json:"status"`
	CouponCode      string                `json:"coupon_code,omitempty"`
	ShippingAddress string                `json:"shipping_address"`
	CreatedAt       time.Time             `json:"created_at"`
}
