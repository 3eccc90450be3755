package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	"github.com/shopspring/decimal"
)

// Strategy is one way of settling an order total. Settle reports ok=false
// when the strategy is not applicable to this requester, in which case the
// dispatcher falls through to the next one. An error means the settlement
// infrastructure itself failed.
type Strategy interface {
	Name() string
	Settle(ctx context.Context, accountID, orderID string, total decimal.Decimal) (domain.Outcome, bool, error)
}

// BalanceSettlement deducts the total from the requester's account balance.
// Applicable only when the account exists and covers the total; the check
// and the deduction are one atomic store operation.
type BalanceSettlement struct {
	store   AccountStore
	nowFunc func() time.Time
}

func NewBalanceSettlement(store AccountStore) *BalanceSettlement {
	return &BalanceSettlement{store: store, nowFunc: time.Now}
}

func (b *BalanceSettlement) Name() string { return domain.MethodBalance }

func (b *BalanceSettlement) Settle(ctx context.Context, accountID, orderID string, total decimal.Decimal) (domain.Outcome, bool, error) {
	err := b.store.TryDeduct(ctx, accountID, total)
	if err != nil {
		var insufficient *domain.InsufficientFundsError
		var notFound *domain.AccountNotFoundError
		if errors.As(err, &insufficient) || errors.As(err, &notFound) {
			// Normal fallthrough, not a failure of the order.
			return domain.Outcome{}, false, nil
		}
		return domain.Outcome{}, false, fmt.Errorf("balance settlement: %w", err)
	}
	return domain.Outcome{
		Status:         domain.StatusSettled,
		Method:         domain.MethodBalance,
		AccountID:      accountID,
		Amount:         total,
		TransactionRef: fmt.Sprintf("BAL-%s-%d", orderID, b.nowFunc().Unix()),
	}, true, nil
}

// DeferredSettlement is the fallback: the order is accepted and payment is
// completed later by the downstream capture process. Always applicable,
// never mutates a balance.
type DeferredSettlement struct{}

func (DeferredSettlement) Name() string { return domain.MethodDeferred }

func (DeferredSettlement) Settle(ctx context.Context, accountID, orderID string, total decimal.Decimal) (domain.Outcome, bool, error) {
	return domain.Outcome{
		Status:    domain.StatusDeferred,
		Method:    domain.MethodDeferred,
		AccountID: accountID,
		Amount:    total,
	}, true, nil
}

// Dispatcher tries strategies in order and returns the first applicable
// outcome. Adding a payment option means adding a strategy, not editing the
// coordinator.
type Dispatcher struct {
	log        *slog.Logger
	store      AccountStore
	strategies []Strategy
}

func NewDispatcher(log *slog.Logger, store AccountStore) *Dispatcher {
	return &Dispatcher{
		log:   log,
		store: store,
		strategies: []Strategy{
			NewBalanceSettlement(store),
			DeferredSettlement{},
		},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, accountID, orderID string, total decimal.Decimal) (domain.Outcome, error) {
	for _, s := range d.strategies {
		outcome, ok, err := s.Settle(ctx, accountID, orderID, total)
		if err != nil {
			return domain.Outcome{
				Status:        domain.StatusFailed,
				Method:        s.Name(),
				AccountID:     accountID,
				Amount:        total,
				FailureReason: err.Error(),
			}, err
		}
		if ok {
			d.log.Info("payment dispatched", "order_id", orderID, "method", s.Name(), "status", string(outcome.Status))
			return outcome, nil
		}
	}
	// Unreachable while DeferredSettlement is registered.
	err := errors.New("no applicable settlement strategy")
	return domain.Outcome{Status: domain.StatusFailed, AccountID: accountID, Amount: total, FailureReason: err.Error()}, err
}

// Rollback undoes a settled deduction when the surrounding order
// transaction aborts after settlement succeeded.
func (d *Dispatcher) Rollback(ctx context.Context, outcome domain.Outcome) error {
	if !outcome.Settled() || outcome.Method != domain.MethodBalance {
		return nil
	}
	if err := d.store.Credit(ctx, outcome.AccountID, outcome.Amount); err != nil {
		d.log.Error("payment rollback failed", "account_id", outcome.AccountID, "amount", outcome.Amount.StringFixed(2), "err", err)
		return err
	}
	return nil
}
