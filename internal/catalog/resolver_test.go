package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"solana-order-pay/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrice_Bundled(t *testing.T) {
	r, err := Load("", "https://gw.example/")
	require.NoError(t, err)

	price, err := r.ResolvePrice("1", "SOL")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.5")))

	price, err = r.ResolvePrice("1", "USDC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("12.99")))
}

func TestResolvePrice_NotFound(t *testing.T) {
	r, err := Load("", "")
	require.NoError(t, err)

	for _, tc := range []struct{ id, cur string }{
		{"2", "USDC"},
		{"3", "SOL"},
		{"404", "SOL"},
		{"1", "sol"},
		{"", ""},
	} {
		_, err := r.ResolvePrice(tc.id, tc.cur)
		assert.ErrorIs(t, err, domain.ErrNotFound, "%s/%s", tc.id, tc.cur)
	}
}

func TestNew_RejectsBadEntries(t *testing.T) {
	_, err := New([]domain.CatalogItem{{ID: "a", Currency: "SOL", Price: decimal.Zero}}, "")
	assert.Error(t, err)

	dup := domain.CatalogItem{ID: "a", Currency: "SOL", Price: decimal.NewFromInt(1)}
	_, err = New([]domain.CatalogItem{dup, dup}, "")
	assert.Error(t, err)

	_, err = New([]domain.CatalogItem{{Currency: "SOL", Price: decimal.NewFromInt(1)}}, "")
	assert.Error(t, err)
}

func TestNew_RejectsItemWithTwoFiles(t *testing.T) {
	_, err := New([]domain.CatalogItem{
		{ID: "a", Currency: "SOL", Price: decimal.NewFromInt(1), Filename: "a.zip", Hash: "h1"},
		{ID: "a", Currency: "USDC", Price: decimal.NewFromInt(9), Filename: "a.zip", Hash: "h2"},
	}, "")
	assert.Error(t, err)
}

func TestFetchItem_SameFileForEveryCurrency(t *testing.T) {
	r, err := New([]domain.CatalogItem{
		{ID: "a", Currency: "SOL", Price: decimal.NewFromInt(1), Filename: "a.zip", Hash: "h1"},
		{ID: "a", Currency: "USDC", Price: decimal.NewFromInt(9), Filename: "a.zip", Hash: "h1"},
	}, "https://gw.example")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		rec, err := r.FetchItem("a")
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryRecord{Filename: "a.zip", Hash: "h1", URL: "https://gw.example/ipfs/h1"}, rec)
	}
}

func TestFetchItem(t *testing.T) {
	r, err := Load("", "https://gw.example/")
	require.NoError(t, err)

	rec, err := r.FetchItem("2")
	require.NoError(t, err)
	assert.Equal(t, "samples.zip", rec.Filename)
	assert.Equal(t, "https://gw.example/ipfs/"+rec.Hash, rec.URL)

	_, err = r.FetchItem("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"z","currency":"SOL","price":0.001,"filename":"z.bin","hash":"h"}]`), 0o644))

	r, err := Load(path, "")
	require.NoError(t, err)
	price, err := r.ResolvePrice("z", "SOL")
	require.NoError(t, err)
	assert.Equal(t, "0.001", price.String())
}
