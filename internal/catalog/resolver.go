package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"solana-order-pay/internal/domain"

	"github.com/shopspring/decimal"
)

//go:embed products.json
var defaultProducts []byte

type key struct {
	id       string
	currency string
}

// Resolver is a read-only catalog keyed by (item, currency). Every price
// entry of one item delivers the same file.
type Resolver struct {
	items   map[key]domain.CatalogItem
	files   map[string]domain.DeliveryRecord
	gateway string
}

// Load reads a products file, or the bundled catalog when path is empty.
func Load(path, gateway string) (*Resolver, error) {
	raw := defaultProducts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		raw = b
	}
	var items []domain.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(items, gateway)
}

func New(items []domain.CatalogItem, gateway string) (*Resolver, error) {
	r := &Resolver{
		items:   make(map[key]domain.CatalogItem, len(items)),
		files:   make(map[string]domain.DeliveryRecord),
		gateway: strings.TrimRight(gateway, "/"),
	}
	for _, it := range items {
		if it.ID == "" || it.Currency == "" {
			return nil, fmt.Errorf("catalog entry missing id or currency: %+v", it)
		}
		if !it.Price.IsPositive() {
			return nil, fmt.Errorf("catalog entry %s/%s has non-positive price %s", it.ID, it.Currency, it.Price)
		}
		k := key{it.ID, it.Currency}
		if _, dup := r.items[k]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s/%s", it.ID, it.Currency)
		}
		file := domain.DeliveryRecord{Filename: it.Filename, Hash: it.Hash}
		if prev, ok := r.files[it.ID]; ok && prev != file {
			return nil, fmt.Errorf("catalog item %s delivers both %s (%s) and %s (%s)",
				it.ID, prev.Filename, prev.Hash, file.Filename, file.Hash)
		}
		r.items[k] = it
		r.files[it.ID] = file
	}
	return r, nil
}

func (r *Resolver) ResolvePrice(itemID, currency string) (decimal.Decimal, error) {
	it, ok := r.items[key{itemID, currency}]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s priced in %s", domain.ErrNotFound, itemID, currency)
	}
	return it.Price, nil
}

// FetchItem returns the delivery record for an item in any currency.
func (r *Resolver) FetchItem(itemID string) (domain.DeliveryRecord, error) {
	rec, ok := r.files[itemID]
	if !ok {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %s", domain.ErrNotFound, itemID)
	}
	if r.gateway != "" && rec.Hash != "" {
		rec.URL = r.gateway + "/ipfs/" + rec.Hash
	}
	return rec, nil
}
