package prefetch_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/storekit/wallet-bridge/internal/prefetch"
	"github.com/storekit/wallet-bridge/internal/wallet"
)

func newTestCache(t *testing.T) (*prefetch.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return prefetch.NewCache(client, time.Minute), mr
}

func TestStoreAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()
	info := wallet.TransactionInfo{TotalPrice: "42.00", CurrencyCode: "USD", TotalPriceStatus: wallet.PriceFinal}

	require.NoError(t, cache.Store(ctx, "product", "sku-1", info))

	got, ok, err := cache.Load(ctx, "product", "sku-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, info, got)
}

func TestLoadMissIsNotAnError(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	_, ok, err := cache.Load(context.Background(), "cart", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSurfacesAreIsolated(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "product", "sku-1", wallet.TransactionInfo{TotalPrice: "10.00", CurrencyCode: "USD"}))
	require.NoError(t, cache.Store(ctx, "cart", "", wallet.TransactionInfo{TotalPrice: "99.00", CurrencyCode: "USD"}))

	got, ok, err := cache.Load(ctx, "product", "sku-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "10.00", got.TotalPrice)
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "checkout", "", wallet.TransactionInfo{TotalPrice: "5.00", CurrencyCode: "USD"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Load(ctx, "checkout", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	cache := prefetch.NewCache(nil, time.Minute)
	require.NoError(t, cache.Store(context.Background(), "product", "x", wallet.TransactionInfo{}))
	_, ok, err := cache.Load(context.Background(), "product", "x")
	require.NoError(t, err)
	require.False(t, ok)
}
