package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"solana-order-pay/internal/catalog"
	"solana-order-pay/internal/config"
	"solana-order-pay/internal/database"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/events"
	"solana-order-pay/internal/repo"
	"solana-order-pay/internal/transfer"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	cfg      config.Config
	network  *chain.SimulatedNetwork
	catalog  *catalog.Resolver
	orders   *repo.MemoryOrderRepo
	intents  *repo.MemoryPaymentRepo
	checkout CheckoutService
}

func testCatalog(t *testing.T) *catalog.Resolver {
	t.Helper()
	c, err := catalog.New([]domain.CatalogItem{
		{ID: "X", Currency: "SOL", Price: decimal.RequireFromString("1.5"), Filename: "x.zip", Hash: "QmX"},
		{ID: "X", Currency: "USDC", Price: decimal.RequireFromString("12.99"), Filename: "x.zip", Hash: "QmX"},
		{ID: "Y", Currency: "SOL", Price: decimal.RequireFromString("0.25"), Filename: "y.zip", Hash: "QmY"},
	}, "https://gateway.example")
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.SellerKey = solana.NewWallet().PublicKey()
	cfg.TokenMint = solana.NewWallet().PublicKey()

	n := chain.NewSimulatedNetwork()
	n.AddMint(cfg.TokenMint, 6)

	f := &fixture{
		cfg:     cfg,
		network: n,
		catalog: testCatalog(t),
		orders:  repo.NewMemoryOrderRepo(),
		intents: repo.NewMemoryPaymentRepo(),
	}
	f.checkout = NewCheckoutService(cfg.SellerKey, f.catalog, Strategies(cfg, n), transfer.Assembler{Network: n}, f.intents)
	return f
}

func (f *fixture) ledger(opts ...LedgerOption) LedgerService {
	return NewLedgerService(database.NoTx{}, f.orders, f.intents, f.catalog, opts...)
}

func newOrder(t *testing.T, itemID, currency string) domain.Order {
	t.Helper()
	o, err := domain.NewOrder(solana.NewWallet().PublicKey(), itemID, currency)
	require.NoError(t, err)
	return o
}

type failingIntents struct {
	repo.PaymentRepo
}

func (failingIntents) CreateIntent(context.Context, *sql.Tx, *domain.PaymentIntent) error {
	return errors.New("connection reset")
}

type recordingPublisher struct {
	orders  []domain.Order
	sources []events.Source
}

func (p *recordingPublisher) OrderRecorded(_ context.Context, order domain.Order, source events.Source) error {
	p.orders = append(p.orders, order)
	p.sources = append(p.sources, source)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type staticFinder struct {
	sigs []chain.ReferenceSignature
	err  error
}

func (f staticFinder) FindReference(context.Context, solana.PublicKey) ([]chain.ReferenceSignature, error) {
	return f.sigs, f.err
}

