package domain

import "github.com/shopspring/decimal"

type CatalogItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
	Filename string          `json:"filename"`
	Hash     string          `json:"hash"`
}

// DeliveryRecord points at the purchased file in a content-addressed store.
type DeliveryRecord struct {
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	URL      string `json:"url,omitempty"`
}
