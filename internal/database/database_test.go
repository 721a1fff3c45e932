package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"solana-order-pay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) config.DBConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return config.DBConfig{
		Host:     host,
		Port:     port.Port(),
		Database: "testdb",
		Username: "testuser",
		Password: "testpass",
		Schema:   "public",
	}
}

func TestNew_MigratesAndReportsHealthy(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	svc, err := New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	health := svc.Health()
	assert.Equal(t, "up", health["status"])

	var n int
	err = svc.DB().QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name IN ('orders', 'payment_intents')",
	).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// second run is a no-op
	require.NoError(t, Migrate(svc.DB()))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	svc, err := New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	err = NewTransactor(svc.DB()).WithinTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO orders (reference, buyer, item_id, currency) VALUES ('r', 'b', '1', 'SOL')")
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var n int
	require.NoError(t, svc.DB().QueryRowContext(ctx, "SELECT count(*) FROM orders").Scan(&n))
	assert.Zero(t, n)
}

func TestWithinTx_Commits(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	svc, err := New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	err = NewTransactor(svc.DB()).WithinTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO orders (reference, buyer, item_id, currency) VALUES ('r', 'b', '1', 'SOL')")
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, svc.DB().QueryRowContext(ctx, "SELECT count(*) FROM orders").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewPostgres_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewPostgres(ctx, config.DBConfig{
		Host: "127.0.0.1", Port: "1", Database: "x", Username: "x", Password: "x", Schema: "public",
	})
	assert.Error(t, err)
}

func TestNoTx_PassesNil(t *testing.T) {
	called := false
	err := NoTx{}.WithinTx(context.Background(), func(tx *sql.Tx) error {
		called = true
		assert.Nil(t, tx)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
