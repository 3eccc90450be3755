package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the coupon store on postgres. The usage increment is a
// conditional UPDATE re-checking the limit, which closes the
// validate-then-use race without any application-level lock.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS coupons (
			code             TEXT PRIMARY KEY,
			discount_percent NUMERIC(5,2) NOT NULL CHECK (discount_percent BETWEEN 0 AND 100),
			used             INT NOT NULL DEFAULT 0 CHECK (used >= 0),
			max_uses         INT NOT NULL CHECK (max_uses > 0),
			expires_at       TIMESTAMPTZ
		);
	`)
	return err
}

func (s *Store) Find(ctx context.Context, code string) (domain.Coupon, error) {
	var c domain.Coupon
	err := s.pool.QueryRow(ctx,
		`SELECT code, discount_percent, used, max_uses, expires_at FROM coupons WHERE code=$1`,
		code,
	).Scan(&c.Code, &c.DiscountPercent, &c.Used, &c.MaxUses, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, &domain.NotFoundError{Code: code}
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}

func (s *Store) TryIncrementUsage(ctx context.Context, code string) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE coupons SET used = used + 1 WHERE code=$1 AND used < max_uses`,
		code,
	)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupons WHERE code=$1)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if !exists {
		return &domain.NotFoundError{Code: code}
	}
	return &domain.ExhaustedError{Code: code}
}

func (s *Store) DecrementUsage(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE coupons SET used = used - 1 WHERE code=$1 AND used > 0`,
		code,
	)
	if err != nil {
		return fmt.Errorf("decrement coupon usage: %w", err)
	}
	return nil
}
