package wallet

import (
	"context"
	"fmt"

	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/transfer"

	"github.com/gagliardetto/solana-go"
)

type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// KeypairSigner plays the wallet: it signs transactions built for its own
// key and submits them.
type KeypairSigner struct {
	key     solana.PrivateKey
	network Sender
}

func NewKeypairSigner(key solana.PrivateKey, network Sender) *KeypairSigner {
	return &KeypairSigner{key: key, network: network}
}

// LoadKeypairSigner reads a solana-keygen JSON keypair file.
func LoadKeypairSigner(path string, network Sender) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key, network), nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) SignAndSend(ctx context.Context, encoded string) (solana.Signature, error) {
	tx, err := transfer.Deserialize(encoded)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", domain.ErrSigning, err)
	}
	pub := s.PublicKey()
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(pub) {
		return solana.Signature{}, fmt.Errorf("%w: fee payer is not %s", domain.ErrSigning, pub)
	}

	// drop the zeroed placeholders; Sign appends
	tx.Signatures = nil
	if _, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &s.key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", domain.ErrSigning, err)
	}

	sig, err := s.network.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}
	return sig, nil
}
