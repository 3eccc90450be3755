package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store implements the product store on postgres. The availability check
// and the decrement are a single conditional UPDATE, so the database, not
// the caller, serializes concurrent reservations.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id    TEXT PRIMARY KEY,
			name  TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			stock INT NOT NULL CHECK (stock >= 0)
		);
		CREATE TABLE IF NOT EXISTS inventory_holds (
			token      UUID PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity   INT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_inventory_holds_status ON inventory_holds(status, created_at);
	`)
	return err
}

func (s *Store) UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT price FROM products WHERE id=$1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("product price: %w", err)
	}
	return price, nil
}

func (s *Store) TryReserve(ctx context.Context, productID string, qty int) (domain.Reservation, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var name string
	var price decimal.Decimal
	err = tx.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2 RETURNING name, price`,
		productID, qty,
	).Scan(&name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		var available int
		err := s.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, &domain.ProductNotFoundError{ProductID: productID}
		}
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("product availability: %w", err)
		}
		return domain.Reservation{}, &domain.InsufficientStockError{
			ProductID: productID,
			Available: available,
			Requested: qty,
		}
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reserve stock: %w", err)
	}

	token := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO inventory_holds (token, product_id, quantity, status, created_at, updated_at)
		 VALUES ($1,$2,$3,'held',now(),now())`,
		token, productID, qty,
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("record hold: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}

	return domain.Reservation{
		Token:       token,
		ProductID:   productID,
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}

func (s *Store) Release(ctx context.Context, token string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var productID string
	var qty int
	err = tx.QueryRow(ctx,
		`UPDATE inventory_holds SET status='released', updated_at=now()
		 WHERE token=$1 AND status='held' RETURNING product_id, quantity`,
		token,
	).Scan(&productID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already released or committed: idempotent no-op.
		return tx.Commit(ctx)
	}
	if err != nil {
		return fmt.Errorf("release hold: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty); err != nil {
		return fmt.Errorf("return stock: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) Commit(ctx context.Context, token string) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE inventory_holds SET status='committed', updated_at=now() WHERE token=$1 AND status='held'`,
		token,
	)
	if err != nil {
		return fmt.Errorf("commit hold: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM inventory_holds WHERE token=$1`, token).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("commit unknown reservation token %s", token)
	}
	if err != nil {
		return fmt.Errorf("commit hold: %w", err)
	}
	if status == "committed" {
		return nil
	}
	return fmt.Errorf("commit %s reservation token %s", status, token)
}

// ReleaseExpired returns stock held longer than ttl to availability, so a
// crash between reserve and commit cannot strand it. Run by the reaper.
func (s *Store) ReleaseExpired(ctx context.Context, ttl time.Duration) (int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token FROM inventory_holds WHERE status='held' AND created_at < now() - make_interval(secs => $1)`,
		ttl.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("find expired holds: %w", err)
	}
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return 0, err
		}
		tokens = append(tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	released := 0
	for _, token := range tokens {
		if err := s.Release(ctx, token); err != nil {
			s.log.Error("expired hold release failed", "token", token, "err", err)
			continue
		}
		released++
	}
	return released, nil
}
