package session

import (
	"context"
	"fmt"
)

type OwnershipChecker interface {
	HasPurchased(ctx context.Context, buyer, itemID string) (bool, error)
}

// CheckOwnership is the purchase gate, consulted before any transaction is
// built so a buyer is never charged twice for the same item.
func CheckOwnership(ctx context.Context, ledger OwnershipChecker, buyer, itemID string) (bool, error) {
	owned, err := ledger.HasPurchased(ctx, buyer, itemID)
	if err != nil {
		return false, fmt.Errorf("check ownership of %s: %w", itemID, err)
	}
	return owned, nil
}
