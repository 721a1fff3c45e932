package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"solana-order-pay/internal/client"
	"solana-order-pay/internal/config"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/wallet"
	"solana-order-pay/internal/session"
)

func main() {
	envCfg, err := config.Load(".env", ".env.local")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	home, _ := os.UserHomeDir()

	serverURL := flag.String("server", fmt.Sprintf("http://localhost:%d", envCfg.Port), "checkout server base URL")
	rpcURL := flag.String("rpc", envCfg.RPCEndpoint, "Solana RPC endpoint")
	keypair := flag.String("keypair", filepath.Join(home, ".config", "solana", "id.json"), "buyer keypair file")
	item := flag.String("item", "1", "catalog item ID")
	coin := flag.String("coin", envCfg.NativeSymbol, "currency symbol")
	repeat := flag.Bool("repeat", false, "buy again even if the item is already owned")
	flag.Parse()

	slog.SetDefault(config.NewLogger(envCfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	network := chain.NewRPCNetwork(*rpcURL)
	signer, err := wallet.LoadKeypairSigner(*keypair, network)
	if err != nil {
		log.Fatalf("wallet: %v", err)
	}
	api := client.New(*serverURL)

	s, err := session.New(signer.PublicKey(), *item, *coin, session.Deps{
		Source:         api,
		Signer:         signer,
		Ledger:         api,
		Network:        network,
		ConfirmTimeout: envCfg.ConfirmTimeout,
		PollInterval:   envCfg.PollInterval,
	})
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	printTransition := func(tr session.Transition) {
		if tr.Owned {
			fmt.Printf("%s: already purchased\n", tr.To)
			return
		}
		fmt.Printf("%s -> %s %s\n", tr.From, tr.To, tr.Signature)
	}
	s.Subscribe(printTransition)

	fmt.Printf("buyer %s, item %s in %s, order %s\n", signer.PublicKey(), *item, *coin, s.Order().OrderID)

	owned, err := s.Start(ctx)
	if err != nil {
		log.Fatalf("ownership check: %v", err)
	}
	if owned && *repeat {
		if s, err = s.Repurchase(); err != nil {
			log.Fatalf("session: %v", err)
		}
		s.Subscribe(printTransition)
		owned = false
		fmt.Printf("buying again with order %s\n", s.Order().OrderID)
	}
	if !owned {
		if _, err := s.Pay(ctx); err != nil {
			log.Fatalf("payment (%s): %v", s.State(), err)
		}
	}

	rec, _ := s.Delivery()
	fmt.Printf("download %s: %s\n", rec.Filename, rec.URL)
}
