// Package memory holds the in-process account store. Only balance-eligible
// accounts live here; check-and-deduct is one step under the lock, so
// concurrent orders by the same account cannot double-spend.
package memory

import (
	"context"
	"sync"

	"github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID      string
	Balance decimal.Decimal
}

type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func NewStore(accounts ...Account) *Store {
	s := &Store{accounts: make(map[string]*Account, len(accounts))}
	for i := range accounts {
		a := accounts[i]
		s.accounts[a.ID] = &a
	}
	return s
}

func (s *Store) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return decimal.Decimal{}, &domain.AccountNotFoundError{AccountID: accountID}
	}
	return a.Balance, nil
}

func (s *Store) TryDeduct(ctx context.Context, accountID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return &domain.AccountNotFoundError{AccountID: accountID}
	}
	if a.Balance.LessThan(amount) {
		return &domain.InsufficientFundsError{
			AccountID: accountID,
			Required:  amount,
			Available: a.Balance,
		}
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (s *Store) Credit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return &domain.AccountNotFoundError{AccountID: accountID}
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}
