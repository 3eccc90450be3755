package domain

import "github.com/shopspring/decimal"

type Status string

const (
	StatusSettled  Status = "settled"
	StatusDeferred Status = "deferred"
	StatusFailed   Status = "failed"
)

const (
	MethodBalance  = "balance"
	MethodDeferred = "deferred"
)

// Outcome is the result of exactly one settlement attempt. An attempt is
// never retried within the same order transaction.
type Outcome struct {
	Status         Status
	Method         string
	AccountID      string
	Amount         decimal.Decimal
	TransactionRef string
	FailureReason  string
}

func (o Outcome) Settled() bool {
	return o.Status == StatusSettled
}
