package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-order-pay/internal/config"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/repo"
	"solana-order-pay/internal/transfer"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PriceResolver interface {
	ResolvePrice(itemID, currency string) (decimal.Decimal, error)
}

// BuiltTransaction is an unsigned, base64-encoded transaction and the intent
// recorded for it.
type BuiltTransaction struct {
	Transaction string
	Intent      domain.PaymentIntent
}

type CheckoutService interface {
	CreateTransaction(ctx context.Context, order domain.Order) (*BuiltTransaction, error)
}

type checkoutService struct {
	seller     solana.PublicKey
	catalog    PriceResolver
	strategies map[string]transfer.Strategy
	assembler  transfer.Assembler
	intents    repo.PaymentRepo
	now        func() time.Time
}

// Strategies maps the configured currency symbols onto their transfer
// strategy.
func Strategies(cfg config.Config, network chain.Network) map[string]transfer.Strategy {
	return map[string]transfer.Strategy{
		cfg.NativeSymbol: transfer.NativeTransfer{},
		cfg.TokenSymbol:  transfer.TokenTransfer{Mint: cfg.TokenMint, Network: network},
	}
}

func NewCheckoutService(
	seller solana.PublicKey,
	catalog PriceResolver,
	strategies map[string]transfer.Strategy,
	assembler transfer.Assembler,
	intents repo.PaymentRepo,
) CheckoutService {
	return &checkoutService{
		seller:     seller,
		catalog:    catalog,
		strategies: strategies,
		assembler:  assembler,
		intents:    intents,
		now:        time.Now,
	}
}

func (s *checkoutService) CreateTransaction(ctx context.Context, order domain.Order) (*BuiltTransaction, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	buyer, _ := order.BuyerKey()
	ref, _ := order.Reference()

	price, err := s.catalog.ResolvePrice(order.ItemID, order.Currency)
	if err != nil {
		return nil, err
	}
	strategy, ok := s.strategies[order.Currency]
	if !ok {
		return nil, fmt.Errorf("%w: no transfer strategy for %s", domain.ErrNotFound, order.Currency)
	}

	ix, err := strategy.Build(ctx, buyer, s.seller, price)
	if err != nil {
		return nil, err
	}
	tagged, err := transfer.AttachReference(ix, ref)
	if err != nil {
		return nil, err
	}
	tx, err := s.assembler.Assemble(ctx, buyer, tagged)
	if err != nil {
		return nil, err
	}
	encoded, err := transfer.Serialize(tx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	intent := domain.PaymentIntent{
		ID:        uuid.New(),
		Reference: order.OrderID,
		Buyer:     order.Buyer,
		ItemID:    order.ItemID,
		Currency:  order.Currency,
		Amount:    tagged.Amount,
		Status:    domain.IntentBuilt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.CreateIntent(ctx, nil, &intent); err != nil {
		if errors.Is(err, repo.ErrReferenceInUse) {
			return nil, fmt.Errorf("%w: %w", domain.ErrDuplicateReference, err)
		}
		return nil, fmt.Errorf("%w: record payment intent: %w", domain.ErrBuild, err)
	}

	slog.Info("built transaction",
		"reference", order.OrderID,
		"buyer", order.Buyer,
		"item", order.ItemID,
		"currency", order.Currency,
		"kind", tagged.Kind,
		"amount", tagged.Amount,
	)
	return &BuiltTransaction{Transaction: encoded, Intent: intent}, nil
}
