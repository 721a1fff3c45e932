package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-order-pay/internal/domain"

	"github.com/gagliardetto/solana-go"
)

type StatusReader interface {
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
}

// WaitForFinality blocks until sig is finalized without error. An execution
// error yields domain.ErrConfirmation and an expired deadline
// domain.ErrNetworkTimeout. Transient RPC errors are retried until then.
func WaitForFinality(ctx context.Context, n StatusReader, sig solana.Signature, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		st, err := n.SignatureStatus(ctx, sig)
		switch {
		case err != nil:
			lastErr = err
			slog.Warn("signature status lookup failed", "signature", sig.String(), "err", err)
		case st == nil:
		case st.Err != "":
			return fmt.Errorf("%w: %s: %s", domain.ErrConfirmation, sig, st.Err)
		case st.Commitment == CommitmentFinalized:
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w: %s: %w", domain.ErrNetworkTimeout, sig, lastErr)
				}
				return fmt.Errorf("%w: %s", domain.ErrNetworkTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
