package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

type TransactionSource interface {
	CreateTransaction(ctx context.Context, order domain.Order) (string, error)
}

// Signer signs an unsigned base64 transaction and submits it. Failures wrap
// domain.ErrSigning or domain.ErrSubmission.
type Signer interface {
	SignAndSend(ctx context.Context, tx string) (solana.Signature, error)
}

type Ledger interface {
	OwnershipChecker
	AddOrder(ctx context.Context, order domain.Order) error
	FetchItem(ctx context.Context, buyer, itemID string) (domain.DeliveryRecord, error)
}

type Deps struct {
	Source         TransactionSource
	Signer         Signer
	Ledger         Ledger
	Network        chain.StatusReader
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Session drives one order from checkout to delivery.
type Session struct {
	ID      uuid.UUID
	order   domain.Order
	deps    Deps
	machine *Machine

	mu        sync.Mutex
	signature solana.Signature
	delivery  *domain.DeliveryRecord
}

// New creates a session with a fresh order reference.
func New(buyer solana.PublicKey, itemID, currency string, deps Deps) (*Session, error) {
	order, err := domain.NewOrder(buyer, itemID, currency)
	if err != nil {
		return nil, err
	}
	if deps.ConfirmTimeout <= 0 {
		deps.ConfirmTimeout = 90 * time.Second
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 2 * time.Second
	}
	return &Session{
		ID:      uuid.New(),
		order:   order,
		deps:    deps,
		machine: NewMachine(order.OrderID),
	}, nil
}

// Repurchase prepares an explicit repeat purchase: a new session with its own
// order reference. Call Pay on it directly; Start would short-circuit on the
// existing purchase.
func (s *Session) Repurchase() (*Session, error) {
	buyer, err := s.order.BuyerKey()
	if err != nil {
		return nil, err
	}
	return New(buyer, s.order.ItemID, s.order.Currency, s.deps)
}

func (s *Session) Order() domain.Order {
	return s.order
}

func (s *Session) State() domain.PaymentStatus {
	return s.machine.State()
}

func (s *Session) Subscribe(fn func(Transition)) func() {
	return s.machine.Subscribe(fn)
}

func (s *Session) Signature() solana.Signature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature
}

func (s *Session) Delivery() (domain.DeliveryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivery == nil {
		return domain.DeliveryRecord{}, false
	}
	return *s.delivery, true
}

// Start runs the purchase gate. When the buyer already owns the item the
// session moves to Paid and the delivery record is loaded.
func (s *Session) Start(ctx context.Context) (bool, error) {
	if st := s.State(); st != domain.PaymentInitial {
		return false, fmt.Errorf("%w: start from %s", domain.ErrIllegalTransition, st)
	}
	owned, err := CheckOwnership(ctx, s.deps.Ledger, s.order.Buyer, s.order.ItemID)
	if err != nil {
		return false, err
	}
	if !owned {
		return false, nil
	}
	if err := s.machine.ShortCircuit(); err != nil {
		return false, err
	}
	slog.Info("item already owned", "order", s.order.OrderID, "item", s.order.ItemID)
	if _, err := s.loadDelivery(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Pay builds, signs, submits and confirms the transfer. Signing and
// submission failures leave the session in Initial; confirmation failures
// leave it in Submitted. Once Paid, the order is written to the ledger and
// the delivery record is fetched.
func (s *Session) Pay(ctx context.Context) (domain.DeliveryRecord, error) {
	if st := s.State(); st != domain.PaymentInitial {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: pay from %s", domain.ErrIllegalTransition, st)
	}
	log := slog.With("order", s.order.OrderID, "item", s.order.ItemID, "currency", s.order.Currency)

	tx, err := s.deps.Source.CreateTransaction(ctx, s.order)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}

	sig, err := s.deps.Signer.SignAndSend(ctx, tx)
	if err != nil {
		if !errors.Is(err, domain.ErrSigning) && !errors.Is(err, domain.ErrSubmission) {
			err = fmt.Errorf("%w: %w", domain.ErrSubmission, err)
		}
		log.Warn("payment not submitted", "error", err)
		return domain.DeliveryRecord{}, err
	}
	s.mu.Lock()
	s.signature = sig
	s.mu.Unlock()
	if err := s.machine.Advance(domain.PaymentSubmitted, sig.String()); err != nil {
		return domain.DeliveryRecord{}, err
	}
	log.Info("payment submitted", "signature", sig.String())

	cctx, cancel := context.WithTimeout(ctx, s.deps.ConfirmTimeout)
	defer cancel()
	if err := chain.WaitForFinality(cctx, s.deps.Network, sig, s.deps.PollInterval); err != nil {
		log.Error("payment not confirmed", "signature", sig.String(), "error", err)
		return domain.DeliveryRecord{}, err
	}
	if err := s.machine.Advance(domain.PaymentPaid, sig.String()); err != nil {
		return domain.DeliveryRecord{}, err
	}
	log.Info("payment finalized", "signature", sig.String())

	// Funds have moved, so a failed write leaves the session Paid. The
	// intent stays BUILT and worker.ReconcileOnce records the order later.
	order := s.order
	order.Signature = sig.String()
	if err := s.deps.Ledger.AddOrder(ctx, order); err != nil {
		log.Error("paid order not recorded", "signature", sig.String(), "error", err)
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)
	}
	return s.loadDelivery(ctx)
}

// Run is Start followed by Pay when the item is not owned yet.
func (s *Session) Run(ctx context.Context) (domain.DeliveryRecord, error) {
	owned, err := s.Start(ctx)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	if owned {
		rec, _ := s.Delivery()
		return rec, nil
	}
	return s.Pay(ctx)
}

func (s *Session) loadDelivery(ctx context.Context) (domain.DeliveryRecord, error) {
	rec, err := s.deps.Ledger.FetchItem(ctx, s.order.Buyer, s.order.ItemID)
	if err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("fetch delivery for %s: %w", s.order.ItemID, err)
	}
	s.mu.Lock()
	s.delivery = &rec
	s.mu.Unlock()
	return rec, nil
}
