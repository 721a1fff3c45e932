package cache

import (
	"context"
	"errors"
)

var ErrCacheMiss = errors.New("cache miss")

// OwnershipCache remembers buyer/item pairs known to be purchased. Only
// positive answers are stored; a recorded order never disappears.
type OwnershipCache interface {
	Owned(ctx context.Context, buyer, itemID string) (bool, error)
	MarkOwned(ctx context.Context, buyer, itemID string) error
}
