package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sony/gobreaker/v2"
)

// RPCNetwork talks to a JSON-RPC node. Reads go through a circuit breaker so
// a dead node fails builds fast instead of piling up requests.
type RPCNetwork struct {
	client  *rpc.Client
	breaker *gobreaker.CircuitBreaker[any]
}

func NewRPCNetwork(endpoint string) *RPCNetwork {
	return NewRPCNetworkWithClient(rpc.New(endpoint))
}

func NewRPCNetworkWithClient(client *rpc.Client) *RPCNetwork {
	settings := gobreaker.Settings{
		Name:        "solana-rpc",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, rpc.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("rpc circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &RPCNetwork{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (n *RPCNetwork) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	v, err := n.breaker.Execute(func() (any, error) {
		return n.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	out := v.(*rpc.GetLatestBlockhashResult)
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("get latest blockhash: empty result")
	}
	return out.Value.Blockhash, nil
}

func (n *RPCNetwork) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	v, err := n.breaker.Execute(func() (any, error) {
		return n.client.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentFinalized,
		})
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return 0, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get mint %s: %w", mint, err)
	}
	info := v.(*rpc.GetAccountInfoResult)
	if info == nil || info.Value == nil {
		return 0, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}
	if !info.Value.Owner.Equals(solana.TokenProgramID) {
		return 0, fmt.Errorf("account %s is not owned by the token program", mint)
	}
	var m token.Mint
	if err := bin.NewBinDecoder(info.Value.Data.GetBinary()).Decode(&m); err != nil {
		return 0, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	if !m.IsInitialized {
		return 0, fmt.Errorf("mint %s is not initialized", mint)
	}
	return m.Decimals, nil
}

func (n *RPCNetwork) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return n.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
}

func (n *RPCNetwork) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	v, err := n.breaker.Execute(func() (any, error) {
		return n.client.GetSignatureStatuses(ctx, true, sig)
	})
	if err != nil {
		return nil, fmt.Errorf("get signature status: %w", err)
	}
	out := v.(*rpc.GetSignatureStatusesResult)
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}
	st := out.Value[0]
	res := &SignatureStatus{
		Slot:       st.Slot,
		Commitment: Commitment(st.ConfirmationStatus),
	}
	if st.Err != nil {
		res.Err = fmt.Sprint(st.Err)
	}
	return res, nil
}

func (n *RPCNetwork) FindReference(ctx context.Context, ref solana.PublicKey) ([]ReferenceSignature, error) {
	limit := 1000
	v, err := n.breaker.Execute(func() (any, error) {
		return n.client.GetSignaturesForAddressWithOpts(ctx, ref, &rpc.GetSignaturesForAddressOpts{
			Commitment: rpc.CommitmentFinalized,
			Limit:      &limit,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", ref, err)
	}
	sigs := v.([]*rpc.TransactionSignature)
	out := make([]ReferenceSignature, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		rs := ReferenceSignature{Signature: s.Signature, Slot: s.Slot}
		if s.Err != nil {
			rs.Err = fmt.Sprint(s.Err)
		}
		out = append(out, rs)
	}
	return out, nil
}
