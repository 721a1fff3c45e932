package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type Outcome int

const (
	OutcomeFinalize Outcome = iota
	OutcomeExecutionError
	OutcomeReject
	// OutcomeStall is accepted but never reaches finalized.
	OutcomeStall
)

type OutcomeFunc func(tx *solana.Transaction) Outcome

// AlwaysFinalize is the default behaviour of a simulated network.
func AlwaysFinalize(*solana.Transaction) Outcome { return OutcomeFinalize }

// RandomOutcomes picks an outcome per transaction; percentages that do not
// add up to 100 leave the remainder stalled.
func RandomOutcomes(finalizePct, errorPct, rejectPct int) OutcomeFunc {
	return func(*solana.Transaction) Outcome {
		chance := rand.IntN(100)
		switch {
		case chance < finalizePct:
			return OutcomeFinalize
		case chance < finalizePct+errorPct:
			return OutcomeExecutionError
		case chance < finalizePct+errorPct+rejectPct:
			return OutcomeReject
		default:
			return OutcomeStall
		}
	}
}

type Op string

const (
	OpLatestBlockhash Op = "latestBlockhash"
	OpMintDecimals    Op = "mintDecimals"
	OpSend            Op = "send"
	OpStatus          Op = "status"
	OpFindReference   Op = "findReference"
)

type simTx struct {
	tx      *solana.Transaction
	slot    uint64
	outcome Outcome
}

// SimulatedNetwork is an in-memory ledger. Every call advances the slot by
// one; a transaction is confirmed one slot after landing and finalized two.
type SimulatedNetwork struct {
	mu          sync.RWMutex
	slot        uint64
	blockhashes map[solana.Hash]uint64
	mints       map[solana.PublicKey]uint8
	txs         map[solana.Signature]*simTx
	refs        map[solana.PublicKey][]solana.Signature
	failures    map[Op]error
	calls       map[Op]int
	outcome     OutcomeFunc
}

func NewSimulatedNetwork() *SimulatedNetwork {
	return &SimulatedNetwork{
		blockhashes: make(map[solana.Hash]uint64),
		mints:       make(map[solana.PublicKey]uint8),
		txs:         make(map[solana.Signature]*simTx),
		refs:        make(map[solana.PublicKey][]solana.Signature),
		failures:    make(map[Op]error),
		calls:       make(map[Op]int),
		outcome:     AlwaysFinalize,
	}
}

func (n *SimulatedNetwork) SetOutcomes(f OutcomeFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcome = f
}

func (n *SimulatedNetwork) AddMint(mint solana.PublicKey, decimals uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mints[mint] = decimals
}

// FailOp makes every call of op return err until cleared with a nil err.
func (n *SimulatedNetwork) FailOp(op Op, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		delete(n.failures, op)
		return
	}
	n.failures[op] = err
}

func (n *SimulatedNetwork) Calls(op Op) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.calls[op]
}

// Advance lets slots pass without any client activity.
func (n *SimulatedNetwork) Advance(slots uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slot += slots
}

func (n *SimulatedNetwork) Transaction(sig solana.Signature) (*solana.Transaction, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.txs[sig]
	if !ok {
		return nil, false
	}
	return t.tx, true
}

// enter must be called with the write lock held.
func (n *SimulatedNetwork) enter(op Op) error {
	n.slot++
	n.calls[op]++
	return n.failures[op]
}

func (n *SimulatedNetwork) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enter(OpLatestBlockhash); err != nil {
		return solana.Hash{}, err
	}
	var h solana.Hash
	for i := range h {
		h[i] = byte(rand.UintN(256))
	}
	n.blockhashes[h] = n.slot
	return h, nil
}

func (n *SimulatedNetwork) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enter(OpMintDecimals); err != nil {
		return 0, err
	}
	d, ok := n.mints[mint]
	if !ok {
		return 0, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}
	return d, nil
}

func (n *SimulatedNetwork) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enter(OpSend); err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is not signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	if _, ok := n.blockhashes[tx.Message.RecentBlockhash]; !ok {
		return solana.Signature{}, errors.New("blockhash not found")
	}
	sig := tx.Signatures[0]
	if _, dup := n.txs[sig]; dup {
		return sig, nil
	}
	outcome := n.outcome(tx)
	if outcome == OutcomeReject {
		return solana.Signature{}, errors.New("transaction simulation failed: insufficient funds")
	}
	n.txs[sig] = &simTx{tx: tx, slot: n.slot, outcome: outcome}
	for _, acc := range tx.Message.AccountKeys {
		n.refs[acc] = append(n.refs[acc], sig)
	}
	slog.Debug("simulated network accepted transaction", "signature", sig.String(), "slot", n.slot)
	return sig, nil
}

func (n *SimulatedNetwork) commitment(t *simTx) Commitment {
	if t.outcome == OutcomeStall {
		return CommitmentProcessed
	}
	switch age := n.slot - t.slot; {
	case age >= 2:
		return CommitmentFinalized
	case age == 1:
		return CommitmentConfirmed
	default:
		return CommitmentProcessed
	}
}

func (n *SimulatedNetwork) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enter(OpStatus); err != nil {
		return nil, err
	}
	t, ok := n.txs[sig]
	if !ok {
		return nil, nil
	}
	st := &SignatureStatus{Slot: t.slot, Commitment: n.commitment(t)}
	if t.outcome == OutcomeExecutionError {
		st.Err = `{"InstructionError":[0,{"Custom":1}]}`
	}
	return st, nil
}

func (n *SimulatedNetwork) FindReference(ctx context.Context, ref solana.PublicKey) ([]ReferenceSignature, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enter(OpFindReference); err != nil {
		return nil, err
	}
	var out []ReferenceSignature
	for _, sig := range n.refs[ref] {
		t := n.txs[sig]
		if n.commitment(t) != CommitmentFinalized {
			continue
		}
		rs := ReferenceSignature{Signature: sig, Slot: t.slot}
		if t.outcome == OutcomeExecutionError {
			rs.Err = `{"InstructionError":[0,{"Custom":1}]}`
		}
		out = append(out, rs)
	}
	return out, nil
}
