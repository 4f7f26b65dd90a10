package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrops-br/products-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKeys(t *testing.T) {
	r := NewProductRepository(nil, "shop:", discardLogger())

	assert.Equal(t, "shop:seq", r.seqKey())
	assert.Equal(t, "shop:ids", r.idsKey())
	assert.Equal(t, "shop:id:42", r.productKey(42))
	assert.Equal(t, "shop:barcode:789", r.barcodeKey("789"))
}

func TestNewProductRepository_DefaultPrefix(t *testing.T) {
	r := NewProductRepository(nil, "", discardLogger())

	assert.Equal(t, DefaultKeyPrefix+"seq", r.seqKey())
}

func TestDecode(t *testing.T) {
	p, err := decode([]byte(`{"id":3,"barcode_id":"123","name":"Tea","description":"","price":"3.5","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-02T00:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(3), p.ID)
	assert.True(t, decimal.RequireFromString("3.5").Equal(p.Price))
	assert.True(t, p.UpdatedAt.After(p.CreatedAt))

	_, err = decode([]byte("not json"))
	assert.Error(t, err)
}

// newIntegrationRepository connects to PRODUCTS_TEST_REDIS_ADDR under a
// throwaway prefix. The test is skipped when the variable is unset.
func newIntegrationRepository(t *testing.T) *ProductRepository {
	t.Helper()

	addr := os.Getenv("PRODUCTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRODUCTS_TEST_REDIS_ADDR not set")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "products-test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})

	return NewProductRepository(client, prefix, discardLogger())
}

func TestIntegration_CRUD(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()

	first, err := r.Save(ctx, &domain.Product{BarcodeID: "111", Name: "Milk", Price: decimal.RequireFromString("4.20")})
	require.NoError(t, err)
	second, err := r.Save(ctx, &domain.Product{BarcodeID: "222", Name: "Bread"})
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)

	got, found, err := r.FindOne(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Milk", got.Name)
	assert.True(t, first.Price.Equal(got.Price))

	all, err := r.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	require.NoError(t, r.Delete(ctx, first.ID))
	require.NoError(t, r.Delete(ctx, first.ID))

	_, found, err = r.FindOneByBarcodeID(ctx, "111")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIntegration_UpdateMovesBarcodeIndex(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &domain.Product{BarcodeID: "old"})
	require.NoError(t, err)

	saved.BarcodeID = "new"
	updated, err := r.Save(ctx, saved)
	require.NoError(t, err)
	assert.True(t, saved.CreatedAt.Equal(updated.CreatedAt))

	_, found, err := r.FindOneByBarcodeID(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := r.FindOneByBarcodeID(ctx, "new")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved.ID, got.ID)
}

func TestIntegration_SharedBarcodeResolvesToLowestID(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()

	_, err := r.Save(ctx, &domain.Product{ID: 9, BarcodeID: "dup", Name: "later"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &domain.Product{ID: 4, BarcodeID: "dup", Name: "earlier"})
	require.NoError(t, err)

	got, found, err := r.FindOneByBarcodeID(ctx, "dup")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "earlier", got.Name)

	next, err := r.Save(ctx, &domain.Product{BarcodeID: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), next.ID, "explicit ids advance the counter")
}
