package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"solana-order-pay/internal/catalog"
	"solana-order-pay/internal/config"
	"solana-order-pay/internal/database"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/wallet"
	"solana-order-pay/internal/repo"
	"solana-order-pay/internal/service"
	"solana-order-pay/internal/session"
	"solana-order-pay/internal/transfer"
	"solana-order-pay/internal/worker"

	"github.com/gagliardetto/solana-go"
)

// crashingLedger loses some ledger writes, as if the process died between
// confirmation and recording the order.
type crashingLedger struct {
	session.Ledger
	crashPct int
}

func (c crashingLedger) AddOrder(ctx context.Context, order domain.Order) error {
	if rand.IntN(100) < c.crashPct {
		return errors.New("process crashed before ledger write")
	}
	return c.Ledger.AddOrder(ctx, order)
}

var purchases = []struct{ item, coin string }{
	{"1", "SOL"}, {"1", "USDC"}, {"2", "SOL"}, {"3", "USDC"},
}

func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	n := flag.Int("n", 20, "number of purchase sessions")
	errorPct := flag.Int("error-pct", 10, "percent of transactions failing on-chain")
	rejectPct := flag.Int("reject-pct", 10, "percent of transactions rejected on submission")
	stallPct := flag.Int("stall-pct", 10, "percent of transactions never finalizing")
	crashPct := flag.Int("crash-pct", 20, "percent of paid orders whose ledger write is lost")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	ctx := context.Background()

	network := chain.NewSimulatedNetwork()
	network.AddMint(cfg.TokenMint, 6)
	network.SetOutcomes(chain.RandomOutcomes(100-*errorPct-*rejectPct-*stallPct, *errorPct, *rejectPct))

	items, err := catalog.Load(cfg.CatalogPath, cfg.IPFSGateway)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	var (
		orders  repo.OrderRepo
		intents repo.PaymentRepo
		tx      database.Transactor = database.NoTx{}
	)
	if cfg.DB.Enabled() {
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		orders, intents, tx = repo.NewOrderRepo(db.DB()), repo.NewPaymentRepo(db.DB()), database.NewTransactor(db.DB())
	} else {
		orders, intents = repo.NewMemoryOrderRepo(), repo.NewMemoryPaymentRepo()
	}

	checkout := service.NewCheckoutService(cfg.SellerKey, items, service.Strategies(cfg, network), transfer.Assembler{Network: network}, intents)
	ledger := service.NewLedgerService(tx, orders, intents, items, service.WithPaymentVerifier(network))
	local := service.Local{Checkout: checkout, LedgerService: ledger}

	fmt.Printf("--- STARTING SIMULATION (%d SESSIONS) ---\n", *n)
	var stranded int
	for i := 0; i < *n; i++ {
		buyer := solana.NewWallet()
		p := purchases[rand.IntN(len(purchases))]
		s, err := session.New(buyer.PublicKey(), p.item, p.coin, session.Deps{
			Source:         local,
			Signer:         wallet.NewKeypairSigner(buyer.PrivateKey, network),
			Ledger:         crashingLedger{Ledger: local, crashPct: *crashPct},
			Network:        network,
			ConfirmTimeout: 200 * time.Millisecond,
			PollInterval:   5 * time.Millisecond,
		})
		if err != nil {
			log.Fatalf("session: %v", err)
		}

		fmt.Printf("[%d] item %s in %s, order %s ... ", i+1, p.item, p.coin, s.Order().OrderID)
		_, err = s.Run(ctx)
		switch {
		case err == nil:
			fmt.Println("SUCCESS")
		case errors.Is(err, domain.ErrLedgerWrite):
			stranded++
			fmt.Printf("PAID BUT NOT RECORDED: %v\n", err)
		default:
			fmt.Printf("FAILED: %v\n", err)
		}

		owned, _ := ledger.HasPurchased(ctx, buyer.PublicKey().String(), p.item)
		fmt.Printf("    -> session %s, ledger owned=%v\n", s.State(), owned)
		fmt.Println("---------------------------------------------------")
	}

	// let every accepted transaction reach finality before scanning
	network.Advance(10)

	fmt.Printf("--- RECONCILING (%d stranded payments) ---\n", stranded)
	rw := worker.NewReconciliationWorker(intents, ledger, network, time.Second, 0, 0)
	res, err := rw.ReconcileOnce(ctx)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	fmt.Printf("scanned=%d reconciled=%d failed=%d expired=%d pending=%d\n",
		res.Scanned, res.Reconciled, res.Failed, res.Expired, res.Pending)
}
