package domain

import "github.com/shopspring/decimal"

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
)

// Event is a named payload queued for publication after the order commits.
type Event struct {
	Name    string
	Payload []byte
}

type OrderCreated struct {
	OrderID     string          `json:"order_id"`
	RequesterID string          `json:"requester_id"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	CouponCode  string          `json:"coupon_code,omitempty"`
}

type OrderPaid struct {
	OrderID string          `json:"order_id"`
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
}
