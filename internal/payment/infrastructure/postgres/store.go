package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store implements the account store on postgres. Check-and-deduct is a
// conditional UPDATE, so two concurrent orders by the same account can
// never together spend more than the balance.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id      TEXT PRIMARY KEY,
			balance NUMERIC(12,2) NOT NULL CHECK (balance >= 0)
		);
	`)
	return err
}

func (s *Store) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id=$1`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, &domain.AccountNotFoundError{AccountID: accountID}
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("account balance: %w", err)
	}
	return balance, nil
}

func (s *Store) TryDeduct(ctx context.Context, accountID string, amount decimal.Decimal) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id=$1 AND balance >= $2`,
		accountID, amount,
	)
	if err != nil {
		return fmt.Errorf("deduct balance: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	available, err := s.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	return &domain.InsufficientFundsError{
		AccountID: accountID,
		Required:  amount,
		Available: available,
	}
}

func (s *Store) Credit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id=$1`,
		accountID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &domain.AccountNotFoundError{AccountID: accountID}
	}
	return nil
}
