package transfer

import (
	"context"
	"fmt"

	"solana-order-pay/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
)

type MintReader interface {
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// TokenTransfer moves SPL tokens between the associated token accounts of
// buyer and seller with a TransferChecked instruction. Decimals are read from
// the mint on every build.
type TokenTransfer struct {
	Mint    solana.PublicKey
	Network MintReader
}

func (TokenTransfer) Kind() domain.CurrencyKind { return domain.CurrencyToken }

func (t TokenTransfer) Build(ctx context.Context, buyer, seller solana.PublicKey, price decimal.Decimal) (Instruction, error) {
	source, _, err := solana.FindAssociatedTokenAddress(buyer, t.Mint)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: buyer token account: %w", domain.ErrBuild, err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(seller, t.Mint)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: seller token account: %w", domain.ErrBuild, err)
	}
	decimals, err := t.Network.MintDecimals(ctx, t.Mint)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: mint decimals: %w", domain.ErrBuild, err)
	}
	amount, err := ToBaseUnits(price, decimals)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}
	ix := token.NewTransferCheckedInstruction(
		amount,
		decimals,
		source,
		t.Mint,
		destination,
		buyer,
		[]solana.PublicKey{},
	).Build()
	return Instruction{
		Kind:        domain.CurrencyToken,
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Decimals:    decimals,
		Program:     ix,
	}, nil
}
