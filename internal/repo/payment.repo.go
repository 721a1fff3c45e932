package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"solana-order-pay/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrReferenceInUse = errors.New("order reference already has a payment intent")

const uniqueViolation = "23505"

type PaymentRepo interface {
	CreateIntent(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent) error
	FindByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error)
	// UpdateIntentStatus moves the intent only if it is still in from. It
	// reports whether the row changed. An empty signature keeps the stored one.
	UpdateIntentStatus(ctx context.Context, tx *sql.Tx, reference string, from, to domain.IntentStatus, signature string) (bool, error)
	FindBuiltBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentIntent, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const intentColumns = "id, reference, buyer, item_id, currency, amount, status, signature, created_at, updated_at"

func (r *paymentRepo) CreateIntent(ctx context.Context, tx *sql.Tx, p *domain.PaymentIntent) error {
	query := `INSERT INTO payment_intents (` + intentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := pick(r.db, tx).ExecContext(
		ctx, query,
		p.ID, p.Reference, p.Buyer, p.ItemID, p.Currency,
		strconv.FormatUint(p.Amount, 10), p.Status, p.Signature, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrReferenceInUse, p.Reference)
	}
	return err
}

func (r *paymentRepo) FindByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE reference = $1`, reference)
	p, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) UpdateIntentStatus(ctx context.Context, tx *sql.Tx, reference string, from, to domain.IntentStatus, signature string) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $3,
		    signature = COALESCE(NULLIF($4, ''), signature),
		    updated_at = now()
		WHERE reference = $1 AND status = $2
	`
	res, err := pick(r.db, tx).ExecContext(ctx, query, reference, from, to, signature)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *paymentRepo) FindBuiltBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + ` FROM payment_intents
		WHERE status = $1
		AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, domain.IntentBuilt, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []domain.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *p)
	}
	return intents, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(s scanner) (*domain.PaymentIntent, error) {
	var (
		p      domain.PaymentIntent
		amount string
	)
	if err := s.Scan(
		&p.ID,
		&p.Reference,
		&p.Buyer,
		&p.ItemID,
		&p.Currency,
		&amount,
		&p.Status,
		&p.Signature,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("intent %s amount %q: %w", p.Reference, amount, err)
	}
	p.Amount = v
	return &p, nil
}
