package transfer

import (
	"context"
	"errors"
	"fmt"

	"solana-order-pay/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var ErrAmountTooSmall = errors.New("amount rounds to zero base units")

// Instruction is a transfer in base units together with the program
// instruction that encodes it.
type Instruction struct {
	Kind        domain.CurrencyKind
	Source      solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Decimals    uint8
	Program     solana.Instruction
	Reference   solana.PublicKey
}

func (i Instruction) Tagged() bool {
	return !i.Reference.IsZero()
}

// Strategy builds the transfer for one currency kind. Implementations return
// either a complete instruction or an error wrapping domain.ErrBuild.
type Strategy interface {
	Kind() domain.CurrencyKind
	Build(ctx context.Context, buyer, seller solana.PublicKey, price decimal.Decimal) (Instruction, error)
}

// ToBaseUnits scales price by 10^decimals and truncates the sub-unit
// remainder, which cannot be transferred.
func ToBaseUnits(price decimal.Decimal, decimals uint8) (uint64, error) {
	return truncateUnits(price.Shift(int32(decimals)))
}

func truncateUnits(scaled decimal.Decimal) (uint64, error) {
	if scaled.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", scaled)
	}
	units := scaled.Truncate(0)
	if !units.IsPositive() {
		return 0, ErrAmountTooSmall
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows u64", units)
	}
	return bi.Uint64(), nil
}
