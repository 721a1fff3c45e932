package session

import (
	"fmt"
	"sync"
	"time"

	"solana-order-pay/internal/domain"
)

// Transition is emitted to subscribers after every state change.
type Transition struct {
	OrderID   string
	From      domain.PaymentStatus
	To        domain.PaymentStatus
	Signature string
	// Owned is set when Paid was reached through an existing purchase
	// instead of a transfer.
	Owned bool
	At    time.Time
}

// Machine holds one session's payment status. It only moves
// Initial→Submitted→Paid, or Initial→Paid for an item already owned.
type Machine struct {
	mu      sync.Mutex
	orderID string
	state   domain.PaymentStatus
	subs    map[int]func(Transition)
	nextSub int
}

func NewMachine(orderID string) *Machine {
	return &Machine{
		orderID: orderID,
		state:   domain.PaymentInitial,
		subs:    make(map[int]func(Transition)),
	}
}

func (m *Machine) State() domain.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for future transitions and returns a function that
// removes it. Callbacks run synchronously on the goroutine that advanced the
// machine.
func (m *Machine) Subscribe(fn func(Transition)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Machine) Advance(to domain.PaymentStatus, signature string) error {
	return m.move(to, signature, false)
}

// ShortCircuit jumps from Initial straight to Paid for a buyer who already
// owns the item.
func (m *Machine) ShortCircuit() error {
	return m.move(domain.PaymentPaid, "", true)
}

func (m *Machine) move(to domain.PaymentStatus, signature string, owned bool) error {
	m.mu.Lock()
	from := m.state
	legal := from.CanTransitionTo(to)
	if owned {
		legal = from == domain.PaymentInitial && to == domain.PaymentPaid
	}
	if !legal {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	m.state = to
	subs := make([]func(Transition), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	tr := Transition{
		OrderID:   m.orderID,
		From:      from,
		To:        to,
		Signature: signature,
		Owned:     owned,
		At:        time.Now().UTC(),
	}
	for _, fn := range subs {
		fn(tr)
	}
	return nil
}
