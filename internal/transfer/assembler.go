package transfer

import (
	"context"
	"encoding/base64"
	"fmt"

	"solana-order-pay/internal/domain"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Assembler wraps a tagged instruction into an unsigned transaction paid for
// by the buyer. The blockhash is fetched per call at finalized commitment.
type Assembler struct {
	Network BlockhashSource
}

func (a Assembler) Assemble(ctx context.Context, buyer solana.PublicKey, ix Instruction) (*solana.Transaction, error) {
	if !ix.Tagged() {
		return nil, fmt.Errorf("%w: instruction carries no order reference", domain.ErrBuild)
	}
	blockhash, err := a.Network.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: recent blockhash: %w", domain.ErrBuild, err)
	}
	return AssembleWithBlockhash(buyer, blockhash, ix)
}

func AssembleWithBlockhash(buyer solana.PublicKey, blockhash solana.Hash, ix Instruction) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix.Program},
		blockhash,
		solana.TransactionPayer(buyer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}
	return tx, nil
}

// Serialize encodes tx for transport without requiring signatures: missing
// signatures are written as zeroed placeholders for the wallet to fill in.
func Serialize(tx *solana.Transaction) (string, error) {
	out := *tx
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(out.Signatures) < required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		out.Signatures = sigs
	}
	raw, err := out.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("%w: serialize: %w", domain.ErrBuild, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func Deserialize(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}
