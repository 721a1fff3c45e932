package service

import (
	"context"

	"solana-order-pay/internal/domain"
)

// Local serves a session from in-process services instead of over HTTP.
type Local struct {
	Checkout CheckoutService
	LedgerService
}

func (l Local) CreateTransaction(ctx context.Context, order domain.Order) (string, error) {
	built, err := l.Checkout.CreateTransaction(ctx, order)
	if err != nil {
		return "", err
	}
	return built.Transaction, nil
}
