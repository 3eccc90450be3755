package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientFundsError reports a balance that cannot cover the amount.
// The deduction it aborted left the balance untouched.
type InsufficientFundsError struct {
	AccountID string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: required %s, available %s",
		e.AccountID, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// AccountNotFoundError reports a requester with no balance-capable account.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}
