package worker

import (
	"context"
	"log/slog"
	"time"

	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/repo"

	"github.com/gagliardetto/solana-go"
)

type ReferenceFinder interface {
	FindReference(ctx context.Context, ref solana.PublicKey) ([]chain.ReferenceSignature, error)
}

type OrderRecorder interface {
	RecordReconciled(ctx context.Context, intent domain.PaymentIntent, signature string) error
}

// Result counts what one reconciliation pass did.
type Result struct {
	Scanned    int
	Reconciled int
	Failed     int
	Expired    int
	Pending    int
}

// ReconciliationWorker finds payments that reached the chain but never made
// it into the ledger, using the order reference as the lookup key.
type ReconciliationWorker struct {
	intents   repo.PaymentRepo
	ledger    OrderRecorder
	network   ReferenceFinder
	interval  time.Duration
	olderThan time.Duration
	expiry    time.Duration
	batch     int
	now       func() time.Time
}

func NewReconciliationWorker(
	intents repo.PaymentRepo,
	ledger OrderRecorder,
	network ReferenceFinder,
	interval, olderThan, expiry time.Duration,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		intents:   intents,
		ledger:    ledger,
		network:   network,
		interval:  interval,
		olderThan: olderThan,
		expiry:    expiry,
		batch:     100,
		now:       time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	slog.Info("reconciliation worker started", "interval", rw.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rw.ReconcileOnce(ctx); err != nil {
				slog.Error("reconciliation failed", "error", err)
			}
		}
	}
}

// ReconcileOnce scans intents still BUILT after olderThan:
// a successful finalized signature records the order, only failed ones mark
// the intent FAILED, and nothing at all past expiry marks it EXPIRED.
func (rw *ReconciliationWorker) ReconcileOnce(ctx context.Context) (Result, error) {
	var res Result
	now := rw.now()
	intents, err := rw.intents.FindBuiltBefore(ctx, now.Add(-rw.olderThan), rw.batch)
	if err != nil {
		return res, err
	}
	if len(intents) == 0 {
		return res, nil
	}

	slog.Info("reconciling payment intents", "count", len(intents))

	for _, intent := range intents {
		res.Scanned++
		log := slog.With("reference", intent.Reference, "buyer", intent.Buyer, "item", intent.ItemID)

		ref, err := solana.PublicKeyFromBase58(intent.Reference)
		if err != nil {
			log.Error("intent has an invalid reference", "error", err)
			continue
		}
		found, err := rw.network.FindReference(ctx, ref)
		if err != nil {
			// leave it for the next pass
			log.Warn("reference lookup failed", "error", err)
			res.Pending++
			continue
		}

		paid, failed := pickSignature(found)
		switch {
		case paid != "":
			if err := rw.ledger.RecordReconciled(ctx, intent, paid); err != nil {
				log.Error("reconciled order not recorded", "signature", paid, "error", err)
				res.Pending++
				continue
			}
			log.Info("found unrecorded payment, order recorded", "signature", paid)
			res.Reconciled++
		case failed != "":
			if rw.mark(ctx, intent, domain.IntentFailed, failed) {
				log.Info("payment failed on-chain", "signature", failed)
				res.Failed++
			}
		case now.Sub(intent.CreatedAt) > rw.expiry:
			if rw.mark(ctx, intent, domain.IntentExpired, "") {
				log.Info("payment intent expired unpaid")
				res.Expired++
			}
		default:
			res.Pending++
		}
	}
	return res, nil
}

func (rw *ReconciliationWorker) mark(ctx context.Context, intent domain.PaymentIntent, to domain.IntentStatus, signature string) bool {
	moved, err := rw.intents.UpdateIntentStatus(ctx, nil, intent.Reference, domain.IntentBuilt, to, signature)
	if err != nil {
		slog.Error("intent status update failed", "reference", intent.Reference, "status", to, "error", err)
		return false
	}
	return moved
}

// pickSignature returns the first successful signature, or else the first
// failed one.
func pickSignature(found []chain.ReferenceSignature) (paid, failed string) {
	for _, rs := range found {
		if rs.Err == "" {
			return rs.Signature.String(), ""
		}
		if failed == "" {
			failed = rs.Signature.String()
		}
	}
	return "", failed
}
