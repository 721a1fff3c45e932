package chain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

var ErrAccountNotFound = errors.New("account not found")

// SignatureStatus is the network's view of a submitted transaction.
// Err is empty when the transaction executed without error.
type SignatureStatus struct {
	Slot       uint64
	Commitment Commitment
	Err        string
}

// ReferenceSignature is a finalized transaction that mentions a reference account.
type ReferenceSignature struct {
	Signature solana.Signature
	Slot      uint64
	Err       string
}

// Network is the read/submit surface of the ledger network. Every read is
// live: callers must not cache blockhashes or mint decimals across orders.
type Network interface {
	// LatestBlockhash returns a blockhash at finalized commitment.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// SignatureStatus returns nil when the network has no record of sig.
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	// FindReference lists finalized transactions whose account keys include ref.
	FindReference(ctx context.Context, ref solana.PublicKey) ([]ReferenceSignature, error)
}
