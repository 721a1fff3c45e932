package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-order-pay/internal/catalog"
	"solana-order-pay/internal/config"
	"solana-order-pay/internal/database"
	"solana-order-pay/internal/infrastructure/cache"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/events"
	"solana-order-pay/internal/repo"
	"solana-order-pay/internal/server"
	"solana-order-pay/internal/service"
	"solana-order-pay/internal/transfer"
	"solana-order-pay/internal/worker"
)

func main() {
	envCfg, err := config.Load(".env", ".env.local")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	port := flag.Int("port", envCfg.Port, "HTTP port")
	rpcURL := flag.String("rpc", envCfg.RPCEndpoint, "Solana RPC endpoint")
	catalogPath := flag.String("catalog", envCfg.CatalogPath, "products JSON file (bundled catalog when empty)")
	reconcile := flag.Bool("reconcile", true, "run the reconciliation worker")
	flag.Parse()

	cfg := envCfg
	cfg.Port = *port
	cfg.RPCEndpoint = *rpcURL
	cfg.CatalogPath = *catalogPath
	slog.SetDefault(config.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := catalog.Load(cfg.CatalogPath, cfg.IPFSGateway)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	network := chain.NewRPCNetwork(cfg.RPCEndpoint)

	var (
		orders  repo.OrderRepo
		intents repo.PaymentRepo
		tx      database.Transactor
		health  server.HealthChecker
	)
	if cfg.DB.Enabled() {
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		orders = repo.NewOrderRepo(db.DB())
		intents = repo.NewPaymentRepo(db.DB())
		tx = database.NewTransactor(db.DB())
		health = db
	} else {
		slog.Warn("no database configured, keeping the order ledger in memory")
		orders = repo.NewMemoryOrderRepo()
		intents = repo.NewMemoryPaymentRepo()
		tx = database.NoTx{}
	}

	opts := []service.LedgerOption{service.WithPaymentVerifier(network)}
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		opts = append(opts, service.WithOwnershipCache(cache.NewRedisCache(client, cfg.Redis.TTL)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}

	checkout := service.NewCheckoutService(
		cfg.SellerKey,
		items,
		service.Strategies(cfg, network),
		transfer.Assembler{Network: network},
		intents,
	)
	ledger := service.NewLedgerService(tx, orders, intents, items, opts...)

	if *reconcile {
		rw := worker.NewReconciliationWorker(intents, ledger, network, cfg.ReconcileInterval, cfg.ReconcileAfter, cfg.IntentExpiry)
		go rw.Run(ctx)
	}

	srv := server.New(cfg, checkout, ledger, health).HTTPServer()
	go func() {
		slog.Info("listening", "addr", srv.Addr, "rpc", cfg.RPCEndpoint, "seller", cfg.SellerKey.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
