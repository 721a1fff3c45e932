package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Transactor runs fn inside one unit of work. Repositories accept the
// *sql.Tx it hands out and fall back to their pool when it is nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// NewTransactor commits when fn returns nil and rolls back otherwise.
func NewTransactor(db *sql.DB) Transactor {
	return sqlTransactor{db: db}
}

type sqlTransactor struct {
	db *sql.DB
}

func (t sqlTransactor) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoTx is the Transactor for in-memory repositories: fn runs once with a nil tx.
type NoTx struct{}

func (NoTx) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}
