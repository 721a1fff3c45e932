package service

import (
	"context"
	"testing"

	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/transfer"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransaction_Native(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "SOL")

	built, err := f.checkout.CreateTransaction(context.Background(), order)
	require.NoError(t, err)

	tx, err := transfer.Deserialize(built.Transaction)
	require.NoError(t, err)
	buyer, _ := order.BuyerKey()
	ref, _ := order.Reference()

	msg := tx.Message
	assert.Equal(t, buyer, msg.AccountKeys[0])
	assert.Equal(t, uint8(1), msg.Header.NumRequiredSignatures)
	require.Len(t, msg.Instructions, 1)

	refIndex := -1
	for i, k := range msg.AccountKeys {
		if k.Equals(ref) {
			refIndex = i
		}
	}
	require.GreaterOrEqual(t, refIndex, 0, "reference missing from account keys")
	assert.GreaterOrEqual(t, refIndex, len(msg.AccountKeys)-int(msg.Header.NumReadonlyUnsignedAccounts), "reference must be read-only")

	assert.Equal(t, uint64(1_500_000_000), built.Intent.Amount)
	assert.Equal(t, domain.IntentBuilt, built.Intent.Status)

	stored, err := f.intents.FindByReference(context.Background(), order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, built.Intent.ID, stored.ID)
}

func TestCreateTransaction_Token(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "USDC")

	built, err := f.checkout.CreateTransaction(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_990_000), built.Intent.Amount)
	assert.Equal(t, 1, f.network.Calls(chain.OpMintDecimals))
	assert.Equal(t, 1, f.network.Calls(chain.OpLatestBlockhash))

	tx, err := transfer.Deserialize(built.Transaction)
	require.NoError(t, err)
	assert.Contains(t, tx.Message.AccountKeys, solana.TokenProgramID)
}

func TestCreateTransaction_MissingItem(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "SOL")
	order.ItemID = ""

	built, err := f.checkout.CreateTransaction(context.Background(), order)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, built)
	assert.Zero(t, f.network.Calls(chain.OpLatestBlockhash))

	stored, err := f.intents.FindByReference(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCreateTransaction_UnknownPair(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.CreateTransaction(context.Background(), newOrder(t, "Y", "USDC"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.checkout.CreateTransaction(context.Background(), newOrder(t, "nope", "SOL"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTransaction_MintLookupFails(t *testing.T) {
	f := newFixture(t)
	f.network.FailOp(chain.OpMintDecimals, assert.AnError)
	order := newOrder(t, "X", "USDC")

	built, err := f.checkout.CreateTransaction(context.Background(), order)
	assert.ErrorIs(t, err, domain.ErrBuild)
	assert.Nil(t, built)

	stored, _ := f.intents.FindByReference(context.Background(), order.OrderID)
	assert.Nil(t, stored)
}

func TestCreateTransaction_BlockhashFails(t *testing.T) {
	f := newFixture(t)
	f.network.FailOp(chain.OpLatestBlockhash, assert.AnError)

	_, err := f.checkout.CreateTransaction(context.Background(), newOrder(t, "X", "SOL"))
	assert.ErrorIs(t, err, domain.ErrBuild)
}

func TestCreateTransaction_ReferenceReuse(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "SOL")

	_, err := f.checkout.CreateTransaction(context.Background(), order)
	require.NoError(t, err)

	again := newOrder(t, "Y", "SOL")
	again.OrderID = order.OrderID
	built, err := f.checkout.CreateTransaction(context.Background(), again)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	assert.Nil(t, built)
}

func TestCreateTransaction_IntentWriteFails(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckoutService(f.cfg.SellerKey, f.catalog, Strategies(f.cfg, f.network), transfer.Assembler{Network: f.network}, failingIntents{})

	built, err := svc.CreateTransaction(context.Background(), newOrder(t, "X", "SOL"))
	assert.ErrorIs(t, err, domain.ErrBuild)
	assert.Nil(t, built)
}

func TestCreateTransaction_FreshBlockhashPerOrder(t *testing.T) {
	f := newFixture(t)
	a, err := f.checkout.CreateTransaction(context.Background(), newOrder(t, "X", "SOL"))
	require.NoError(t, err)
	b, err := f.checkout.CreateTransaction(context.Background(), newOrder(t, "X", "SOL"))
	require.NoError(t, err)

	txA, _ := transfer.Deserialize(a.Transaction)
	txB, _ := transfer.Deserialize(b.Transaction)
	assert.NotEqual(t, txA.Message.RecentBlockhash, txB.Message.RecentBlockhash)
}
