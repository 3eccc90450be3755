package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	inventorydomain "github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	paymentdomain "github.com/chienpv-3590/order-processing-system/internal/payment/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Repository persists committed orders. Save writes the order, its line
// items, the finalized holds and the outbox events in one transaction: a
// committed order always owns its stock and its creation event, and a
// failed write leaves the holds releasable.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id               TEXT PRIMARY KEY,
			requester_id     TEXT NOT NULL,
			shipping_address TEXT NOT NULL,
			coupon_code      TEXT,
			subtotal         NUMERIC(12,2) NOT NULL,
			discount         NUMERIC(12,2) NOT NULL,
			tax              NUMERIC(12,2) NOT NULL,
			total            NUMERIC(12,2) NOT NULL,
			payment_status   TEXT NOT NULL,
			payment_method   TEXT NOT NULL,
			payment_ref      TEXT,
			payment_reason   TEXT,
			status           TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS order_items (
			order_id   TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			name       TEXT NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			quantity   INT NOT NULL,
			subtotal   NUMERIC(12,2) NOT NULL,
			PRIMARY KEY (order_id, product_id)
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			type         TEXT NOT NULL,
			payload      BYTEA NOT NULL,
			traceparent  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			retry_count  INT NOT NULL DEFAULT 0,
			last_error   TEXT,
			relay_id     TEXT,
			lease_until  TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, id);
	`)
	return err
}

func (r *Repository) Save(ctx context.Context, rec domain.Record, holds []inventorydomain.Reservation, events []domain.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, requester_id, shipping_address, coupon_code,
			subtotal, discount, tax, total,
			payment_status, payment_method, payment_ref, payment_reason,
			status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.RequesterID, rec.ShippingAddress, nullable(rec.CouponCode),
		rec.Pricing.Subtotal, rec.Pricing.Discount, rec.Pricing.Tax, rec.Pricing.Total,
		string(rec.Payment.Status), rec.Payment.Method, nullable(rec.Payment.TransactionRef), nullable(rec.Payment.FailureReason),
		string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range rec.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			rec.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.Subtotal)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	// Finalize the holds in the same transaction. A hold no longer held
	// (e.g. reaped after its TTL lapsed) fails the whole write rather than
	// committing an order whose stock was already returned.
	for _, h := range holds {
		ct, err := tx.Exec(ctx,
			`UPDATE inventory_holds SET status='committed', updated_at=now() WHERE token=$1 AND status='held'`,
			h.Token,
		)
		if err != nil {
			return fmt.Errorf("finalize hold %s: %w", h.Token, err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("finalize hold %s: no longer held", h.Token)
		}
	}

	traceparent := traceparentFromContext(ctx)
	for _, e := range events {
		_, err := tx.Exec(ctx,
			`INSERT INTO outbox (aggregate_id, type, payload, traceparent, status, created_at)
			 VALUES ($1,$2,$3,$4,'pending',now())`,
			rec.ID, e.Name, e.Payload, traceparent,
		)
		if err != nil {
			return fmt.Errorf("queue event %s: %w", e.Name, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Record, error) {
	var rec domain.Record
	var couponCode, paymentRef, paymentReason *string
	var paymentStatus, paymentMethod, status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, requester_id, shipping_address, coupon_code,
			subtotal, discount, tax, total,
			payment_status, payment_method, payment_ref, payment_reason,
			status, created_at
		FROM orders WHERE id=$1`, id,
	).Scan(&rec.ID, &rec.RequesterID, &rec.ShippingAddress, &couponCode,
		&rec.Pricing.Subtotal, &rec.Pricing.Discount, &rec.Pricing.Tax, &rec.Pricing.Total,
		&paymentStatus, &paymentMethod, &paymentRef, &paymentReason,
		&status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("order %s not found", id)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("get order: %w", err)
	}
	rec.Status = domain.Status(status)
	rec.Payment.Status = paymentdomain.Status(paymentStatus)
	rec.Payment.Method = paymentMethod
	rec.Payment.Amount = rec.Pricing.Total
	rec.Payment.AccountID = rec.RequesterID
	if couponCode != nil {
		rec.CouponCode = *couponCode
	}
	if paymentRef != nil {
		rec.Payment.TransactionRef = *paymentRef
	}
	if paymentReason != nil {
		rec.Payment.FailureReason = *paymentReason
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, name, unit_price, quantity, subtotal FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Subtotal); err != nil {
			return domain.Record{}, err
		}
		rec.Items = append(rec.Items, item)
	}
	return rec, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func traceparentFromContext(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}
