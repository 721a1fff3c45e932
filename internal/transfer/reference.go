package transfer

import (
	"fmt"

	"solana-order-pay/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// AttachReference appends ref to the instruction's accounts as read-only and
// non-signing. The account carries no transfer semantics; it only makes the
// transaction findable by a signatures-for-address scan. Tagging twice is an
// error.
func AttachReference(ix Instruction, ref solana.PublicKey) (Instruction, error) {
	if ix.Program == nil {
		return Instruction{}, fmt.Errorf("%w: instruction has no program encoding", domain.ErrBuild)
	}
	if ref.IsZero() {
		return Instruction{}, fmt.Errorf("%w: empty order reference", domain.ErrValidation)
	}
	if ix.Tagged() {
		return Instruction{}, fmt.Errorf("%w: %s already tagged with %s", domain.ErrDuplicateReference, ix.Kind, ix.Reference)
	}

	accounts := ix.Program.Accounts()
	metas := make(solana.AccountMetaSlice, 0, len(accounts)+1)
	for _, acc := range accounts {
		if acc.PublicKey.Equals(ref) {
			return Instruction{}, fmt.Errorf("%w: reference %s is already a transfer account", domain.ErrDuplicateReference, ref)
		}
		cp := *acc
		metas = append(metas, &cp)
	}
	metas = append(metas, &solana.AccountMeta{PublicKey: ref, IsSigner: false, IsWritable: false})

	data, err := ix.Program.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: encode instruction: %w", domain.ErrBuild, err)
	}
	ix.Program = solana.NewInstruction(ix.Program.ProgramID(), metas, data)
	ix.Reference = ref
	return ix, nil
}
