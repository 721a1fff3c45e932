package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-order-pay/internal/domain"
)

// MemoryOrderRepo backs the ledger when no database is configured. The tx
// argument is ignored.
type MemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRepo) AddOrder(_ context.Context, _ *sql.Tx, order *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderID]; ok {
		return false, nil
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	r.orders[order.OrderID] = *order
	return true, nil
}

func (r *MemoryOrderRepo) HasPurchased(_ context.Context, buyer, itemID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.Buyer == buyer && o.ItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryOrderRepo) FindByReference(_ context.Context, reference string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[reference]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *MemoryOrderRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

type MemoryPaymentRepo struct {
	mu      sync.RWMutex
	intents map[string]domain.PaymentIntent
}

func NewMemoryPaymentRepo() *MemoryPaymentRepo {
	return &MemoryPaymentRepo{intents: make(map[string]domain.PaymentIntent)}
}

func (r *MemoryPaymentRepo) CreateIntent(_ context.Context, _ *sql.Tx, p *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[p.Reference]; ok {
		return fmt.Errorf("%w: %s", ErrReferenceInUse, p.Reference)
	}
	r.intents[p.Reference] = *p
	return nil
}

func (r *MemoryPaymentRepo) FindByReference(_ context.Context, reference string) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.intents[reference]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryPaymentRepo) UpdateIntentStatus(_ context.Context, _ *sql.Tx, reference string, from, to domain.IntentStatus, signature string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.intents[reference]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if signature != "" {
		p.Signature = signature
	}
	p.UpdatedAt = time.Now().UTC()
	r.intents[reference] = p
	return true, nil
}

func (r *MemoryPaymentRepo) FindBuiltBefore(_ context.Context, before time.Time, limit int) ([]domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PaymentIntent
	for _, p := range r.intents {
		if p.Status == domain.IntentBuilt && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ OrderRepo   = (*MemoryOrderRepo)(nil)
	_ PaymentRepo = (*MemoryPaymentRepo)(nil)
)
