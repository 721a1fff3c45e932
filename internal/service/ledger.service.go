package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-order-pay/internal/database"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/cache"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/events"
	"solana-order-pay/internal/repo"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"
)

// ownershipLookupTimeout bounds a shared HasPurchased lookup, which outlives
// the cancellation of whichever caller started it.
const ownershipLookupTimeout = 5 * time.Second

type ItemSource interface {
	FetchItem(itemID string) (domain.DeliveryRecord, error)
}

type ReferenceFinder interface {
	FindReference(ctx context.Context, ref solana.PublicKey) ([]chain.ReferenceSignature, error)
}

// LedgerService is the order ledger: it records paid orders, answers
// ownership questions and hands out delivery records to owners.
type LedgerService interface {
	AddOrder(ctx context.Context, order domain.Order) error
	RecordReconciled(ctx context.Context, intent domain.PaymentIntent, signature string) error
	HasPurchased(ctx context.Context, buyer, itemID string) (bool, error)
	FetchItem(ctx context.Context, buyer, itemID string) (domain.DeliveryRecord, error)
}

type LedgerOption func(*ledgerService)

func WithOwnershipCache(c cache.OwnershipCache) LedgerOption {
	return func(s *ledgerService) { s.cache = c }
}

func WithPublisher(p events.Publisher) LedgerOption {
	return func(s *ledgerService) { s.events = p }
}

// WithPaymentVerifier makes AddOrder require a finalized, successful
// signature mentioning the order reference.
func WithPaymentVerifier(f ReferenceFinder) LedgerOption {
	return func(s *ledgerService) { s.verifier = f }
}

type ledgerService struct {
	tx       database.Transactor
	orders   repo.OrderRepo
	intents  repo.PaymentRepo
	items    ItemSource
	cache    cache.OwnershipCache
	events   events.Publisher
	verifier ReferenceFinder
	sfg      singleflight.Group
}

func NewLedgerService(
	tx database.Transactor,
	orders repo.OrderRepo,
	intents repo.PaymentRepo,
	items ItemSource,
	opts ...LedgerOption,
) LedgerService {
	s := &ledgerService{
		tx:      tx,
		orders:  orders,
		intents: intents,
		items:   items,
		events:  events.Discard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ledgerService) AddOrder(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if s.verifier != nil {
		if err := s.verifyPayment(ctx, order); err != nil {
			return err
		}
	}
	return s.record(ctx, order, domain.IntentRecorded, events.SourceClient)
}

func (s *ledgerService) RecordReconciled(ctx context.Context, intent domain.PaymentIntent, signature string) error {
	order := intent.Order()
	order.Signature = signature
	return s.record(ctx, order, domain.IntentReconciled, events.SourceReconciler)
}

func (s *ledgerService) verifyPayment(ctx context.Context, order domain.Order) error {
	if order.Signature == "" {
		return fmt.Errorf("%w: missing transaction signature", domain.ErrValidation)
	}
	ref, _ := order.Reference()
	found, err := s.verifier.FindReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("look up payment for %s: %w", order.OrderID, err)
	}
	for _, rs := range found {
		if rs.Signature.String() == order.Signature && rs.Err == "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no finalized payment %s for reference %s", domain.ErrValidation, order.Signature, order.OrderID)
}

// record writes the order and closes its payment intent in one transaction.
// Writing an already recorded order is a no-op.
func (s *ledgerService) record(ctx context.Context, order domain.Order, status domain.IntentStatus, source events.Source) error {
	var inserted bool
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		intent, err := s.intents.FindByReference(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if intent != nil && (intent.Buyer != order.Buyer || intent.ItemID != order.ItemID || intent.Currency != order.Currency) {
			return fmt.Errorf("%w: order %s does not match the transaction built for it", domain.ErrValidation, order.OrderID)
		}

		inserted, err = s.orders.AddOrder(ctx, tx, &order)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.orders.FindByReference(ctx, order.OrderID)
			if err != nil {
				return err
			}
			if existing != nil && (existing.Buyer != order.Buyer || existing.ItemID != order.ItemID) {
				return fmt.Errorf("%w: %s already recorded for another order", domain.ErrDuplicateReference, order.OrderID)
			}
		}
		if intent != nil {
			if _, err := s.intents.UpdateIntentStatus(ctx, tx, order.OrderID, domain.IntentBuilt, status, order.Signature); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDuplicateReference) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)
	}
	if !inserted {
		return nil
	}

	slog.Info("order recorded", "reference", order.OrderID, "buyer", order.Buyer, "item", order.ItemID, "source", source)
	if s.cache != nil {
		if err := s.cache.MarkOwned(ctx, order.Buyer, order.ItemID); err != nil {
			slog.Warn("ownership cache set failed", "error", err)
		}
	}
	if err := s.events.OrderRecorded(ctx, order, source); err != nil {
		slog.Error("order event not published", "reference", order.OrderID, "error", err)
	}
	return nil
}

func (s *ledgerService) HasPurchased(ctx context.Context, buyer, itemID string) (bool, error) {
	if buyer == "" || itemID == "" {
		return false, fmt.Errorf("%w: buyer and item are required", domain.ErrValidation)
	}
	v, err, _ := s.sfg.Do(buyer+"/"+itemID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ownershipLookupTimeout)
		defer cancel()
		if s.cache != nil {
			owned, err := s.cache.Owned(ctx, buyer, itemID)
			if err == nil {
				return owned, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				slog.Warn("ownership cache get failed", "error", err)
			}
		}
		owned, err := s.orders.HasPurchased(ctx, buyer, itemID)
		if err != nil {
			return false, err
		}
		if owned && s.cache != nil {
			if err := s.cache.MarkOwned(ctx, buyer, itemID); err != nil {
				slog.Warn("ownership cache set failed", "error", err)
			}
		}
		return owned, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *ledgerService) FetchItem(ctx context.Context, buyer, itemID string) (domain.DeliveryRecord, error) {
	owned, err := s.HasPurchased(ctx, buyer, itemID)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	if !owned {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %s by %s", domain.ErrNotPurchased, itemID, buyer)
	}
	return s.items.FetchItem(itemID)
}
