package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the per-session state. It only moves forward.
type PaymentStatus string

const (
	PaymentInitial   PaymentStatus = "Initial"
	PaymentSubmitted PaymentStatus = "Submitted"
	PaymentPaid      PaymentStatus = "Paid"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentInitial:
		return next == PaymentSubmitted
	case PaymentSubmitted:
		return next == PaymentPaid
	}
	return false
}

type IntentStatus string

const (
	IntentBuilt      IntentStatus = "BUILT"
	IntentRecorded   IntentStatus = "RECORDED"
	IntentReconciled IntentStatus = "RECONCILED"
	IntentFailed     IntentStatus = "FAILED"
	IntentExpired    IntentStatus = "EXPIRED"
)

func (s IntentStatus) IsTerminal() bool {
	return s != IntentBuilt
}

// PaymentIntent is the server's record of a transaction it handed out,
// keyed by the order reference so the payment can be found on-chain later.
type PaymentIntent struct {
	ID        uuid.UUID
	Reference string
	Buyer     string
	ItemID    string
	Currency  string
	Amount    uint64
	Status    IntentStatus
	Signature string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p PaymentIntent) Order() Order {
	return Order{
		Buyer:     p.Buyer,
		OrderID:   p.Reference,
		ItemID:    p.ItemID,
		Currency:  p.Currency,
		Signature: p.Signature,
		CreatedAt: p.CreatedAt,
	}
}
