package transfer

import (
	"context"
	"fmt"

	"solana-order-pay/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
)

// nativeDecimals is the lamport precision of one SOL.
const nativeDecimals uint8 = 9

var lamportsPerSOL = decimal.New(1, int32(nativeDecimals))

// NativeTransfer debits the buyer and credits the seller in lamports.
type NativeTransfer struct{}

func (NativeTransfer) Kind() domain.CurrencyKind { return domain.CurrencyNative }

func (NativeTransfer) Build(_ context.Context, buyer, seller solana.PublicKey, price decimal.Decimal) (Instruction, error) {
	lamports, err := truncateUnits(price.Mul(lamportsPerSOL))
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}
	return Instruction{
		Kind:        domain.CurrencyNative,
		Source:      buyer,
		Destination: seller,
		Amount:      lamports,
		Decimals:    nativeDecimals,
		Program:     system.NewTransferInstruction(lamports, buyer, seller).Build(),
	}, nil
}
