package service

import (
	"context"
	"testing"
	"time"

	"solana-order-pay/internal/database"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/infrastructure/cache"
	"solana-order-pay/internal/infrastructure/chain"
	"solana-order-pay/internal/infrastructure/events"
	"solana-order-pay/internal/repo"

	"github.com/alicebob/miniredis/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrder_RecordsOnceAndClosesIntent(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	ledger := f.ledger(WithPublisher(pub))
	ctx := context.Background()

	order := newOrder(t, "X", "SOL")
	_, err := f.checkout.CreateTransaction(ctx, order)
	require.NoError(t, err)
	order.Signature = "sig"

	require.NoError(t, ledger.AddOrder(ctx, order))
	require.NoError(t, ledger.AddOrder(ctx, order))

	assert.Equal(t, 1, f.orders.Len())
	require.Len(t, pub.orders, 1)
	assert.Equal(t, events.SourceClient, pub.sources[0])

	intent, err := f.intents.FindByReference(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentRecorded, intent.Status)
	assert.Equal(t, "sig", intent.Signature)

	owned, err := ledger.HasPurchased(ctx, order.Buyer, "X")
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestAddOrder_Invalid(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "SOL")
	order.Buyer = ""

	err := f.ledger().AddOrder(context.Background(), order)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.orders.Len())
}

func TestAddOrder_DoesNotMatchBuiltIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := newOrder(t, "Y", "SOL")
	_, err := f.checkout.CreateTransaction(ctx, order)
	require.NoError(t, err)

	order.ItemID = "X"
	err = f.ledger().AddOrder(ctx, order)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.orders.Len())
}

func TestAddOrder_ReferenceRecordedForAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := newOrder(t, "X", "SOL")
	require.NoError(t, f.ledger().AddOrder(ctx, first))

	second := newOrder(t, "Y", "SOL")
	second.OrderID = first.OrderID
	err := f.ledger().AddOrder(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
}

func TestAddOrder_WithPaymentVerifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sig := solana.Signature{1, 2, 3}

	order := newOrder(t, "X", "SOL")
	order.Signature = sig.String()

	ledger := f.ledger(WithPaymentVerifier(staticFinder{}))
	assert.ErrorIs(t, ledger.AddOrder(ctx, order), domain.ErrValidation)

	failed := f.ledger(WithPaymentVerifier(staticFinder{sigs: []chain.ReferenceSignature{{Signature: sig, Err: "InstructionError"}}}))
	assert.ErrorIs(t, failed.AddOrder(ctx, order), domain.ErrValidation)

	unsigned := order
	unsigned.Signature = ""
	assert.ErrorIs(t, ledger.AddOrder(ctx, unsigned), domain.ErrValidation)

	down := f.ledger(WithPaymentVerifier(staticFinder{err: assert.AnError}))
	err := down.AddOrder(ctx, order)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.orders.Len())

	ok := f.ledger(WithPaymentVerifier(staticFinder{sigs: []chain.ReferenceSignature{{Signature: sig}}}))
	require.NoError(t, ok.AddOrder(ctx, order))
	assert.Equal(t, 1, f.orders.Len())
}

func TestRecordReconciled(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	ctx := context.Background()
	order := newOrder(t, "X", "USDC")
	built, err := f.checkout.CreateTransaction(ctx, order)
	require.NoError(t, err)

	require.NoError(t, f.ledger(WithPublisher(pub)).RecordReconciled(ctx, built.Intent, "sig"))

	recorded, err := f.orders.FindByReference(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, "sig", recorded.Signature)
	assert.Equal(t, order.Buyer, recorded.Buyer)

	intent, _ := f.intents.FindByReference(ctx, order.OrderID)
	assert.Equal(t, domain.IntentReconciled, intent.Status)
	require.Len(t, pub.sources, 1)
	assert.Equal(t, events.SourceReconciler, pub.sources[0])
}

func TestHasPurchased_CachesOnlyPositive(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ledger := f.ledger(WithOwnershipCache(cache.NewRedisCache(client, 0)))
	ctx := context.Background()

	order := newOrder(t, "X", "SOL")
	owned, err := ledger.HasPurchased(ctx, order.Buyer, "X")
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Empty(t, mr.Keys())

	// written behind the service's back: the negative answer was not cached
	_, err = f.orders.AddOrder(ctx, nil, &order)
	require.NoError(t, err)

	owned, err = ledger.HasPurchased(ctx, order.Buyer, "X")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Len(t, mr.Keys(), 1)
}

func TestHasPurchased_CacheDownFallsBackToLedger(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ledger := f.ledger(WithOwnershipCache(cache.NewRedisCache(client, 0)))
	ctx := context.Background()

	order := newOrder(t, "X", "SOL")
	require.NoError(t, ledger.AddOrder(ctx, order))
	mr.Close()

	owned, err := ledger.HasPurchased(ctx, order.Buyer, "X")
	require.NoError(t, err)
	assert.True(t, owned)
}

// slowOrders holds HasPurchased until released, honouring its ctx meanwhile.
type slowOrders struct {
	*repo.MemoryOrderRepo
	entered chan struct{}
	release chan struct{}
}

func (r *slowOrders) HasPurchased(ctx context.Context, buyer, itemID string) (bool, error) {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	select {
	case <-r.release:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return r.MemoryOrderRepo.HasPurchased(ctx, buyer, itemID)
}

func TestHasPurchased_SharedLookupSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	order := newOrder(t, "X", "SOL")
	_, err := f.orders.AddOrder(context.Background(), nil, &order)
	require.NoError(t, err)

	orders := &slowOrders{MemoryOrderRepo: f.orders, entered: make(chan struct{}, 1), release: make(chan struct{})}
	ledger := NewLedgerService(database.NoTx{}, orders, f.intents, f.catalog)

	type answer struct {
		owned bool
		err   error
	}
	first, second := make(chan answer, 1), make(chan answer, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		owned, err := ledger.HasPurchased(ctx, order.Buyer, "X")
		first <- answer{owned, err}
	}()
	<-orders.entered

	go func() {
		owned, err := ledger.HasPurchased(context.Background(), order.Buyer, "X")
		second <- answer{owned, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(orders.release)

	for _, ch := range []chan answer{first, second} {
		select {
		case a := <-ch:
			require.NoError(t, a.err)
			assert.True(t, a.owned)
		case <-time.After(2 * time.Second):
			t.Fatal("ownership lookup did not return")
		}
	}
}

func TestHasPurchased_RequiresBuyerAndItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger().HasPurchased(context.Background(), "", "X")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFetchItem_GatedByPurchase(t *testing.T) {
	f := newFixture(t)
	ledger := f.ledger()
	ctx := context.Background()
	order := newOrder(t, "X", "SOL")

	_, err := ledger.FetchItem(ctx, order.Buyer, "X")
	assert.ErrorIs(t, err, domain.ErrNotPurchased)

	require.NoError(t, ledger.AddOrder(ctx, order))
	rec, err := ledger.FetchItem(ctx, order.Buyer, "X")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRecord{Filename: "x.zip", Hash: "QmX", URL: "https://gateway.example/ipfs/QmX"}, rec)
}
