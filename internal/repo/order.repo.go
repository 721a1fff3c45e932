package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"solana-order-pay/internal/domain"
)

// queryer is what *sql.DB and *sql.Tx have in common.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) queryer {
	if tx == nil {
		return db
	}
	return tx
}

type OrderRepo interface {
	// AddOrder inserts the order unless its reference is already recorded.
	// It reports whether a row was written.
	AddOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) (bool, error)
	HasPurchased(ctx context.Context, buyer, itemID string) (bool, error)
	FindByReference(ctx context.Context, reference string) (*domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) AddOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) (bool, error) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	res, err := pick(r.db, tx).ExecContext(ctx,
		`INSERT INTO orders (reference, buyer, item_id, currency, signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (reference) DO NOTHING`,
		order.OrderID, order.Buyer, order.ItemID, order.Currency, order.Signature, order.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) HasPurchased(ctx context.Context, buyer, itemID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE buyer = $1 AND item_id = $2)",
		buyer, itemID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *orderRepo) FindByReference(ctx context.Context, reference string) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT reference, buyer, item_id, currency, signature, created_at FROM orders WHERE reference = $1",
		reference,
	).Scan(
		&order.OrderID,
		&order.Buyer,
		&order.ItemID,
		&order.Currency,
		&order.Signature,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
