package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

type CurrencyKind string

const (
	CurrencyNative CurrencyKind = "NATIVE"
	CurrencyToken  CurrencyKind = "TOKEN"
)

// Order is what the buyer pays for. OrderID is the order reference: a fresh
// public key with no private key ever used, embedded read-only in the transfer.
type Order struct {
	Buyer     string    `json:"buyer"`
	OrderID   string    `json:"orderID"`
	ItemID    string    `json:"itemID"`
	Currency  string    `json:"coin"`
	Signature string    `json:"signature,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// NewOrder generates the order reference locally, before any network call.
func NewOrder(buyer solana.PublicKey, itemID, currency string) (Order, error) {
	ref, err := NewReference()
	if err != nil {
		return Order{}, err
	}
	return Order{
		Buyer:     buyer.String(),
		OrderID:   ref.String(),
		ItemID:    itemID,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func NewReference() (solana.PublicKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("generate order reference: %w", err)
	}
	return key.PublicKey(), nil
}

// Validate checks the four fields a build request needs and that both keys
// decode as base58 public keys.
func (o Order) Validate() error {
	switch {
	case strings.TrimSpace(o.Buyer) == "":
		return fmt.Errorf("%w: missing buyer address", ErrValidation)
	case strings.TrimSpace(o.OrderID) == "":
		return fmt.Errorf("%w: missing order ID", ErrValidation)
	case strings.TrimSpace(o.ItemID) == "":
		return fmt.Errorf("%w: missing item ID", ErrValidation)
	case strings.TrimSpace(o.Currency) == "":
		return fmt.Errorf("%w: missing currency", ErrValidation)
	}
	if _, err := o.BuyerKey(); err != nil {
		return err
	}
	if _, err := o.Reference(); err != nil {
		return err
	}
	return nil
}

func (o Order) BuyerKey() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(o.Buyer)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid buyer address: %w", ErrValidation, err)
	}
	return pk, nil
}

func (o Order) Reference() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(o.OrderID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid order ID: %w", ErrValidation, err)
	}
	return pk, nil
}
