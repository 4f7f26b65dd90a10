package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrops-br/products-service/internal/domain"
)

const createProductsTable = `CREATE TABLE IF NOT EXISTS products (
	id          bigserial PRIMARY KEY,
	barcode_id  text NOT NULL DEFAULT '',
	name        text NOT NULL DEFAULT '',
	description text NOT NULL DEFAULT '',
	price       numeric NOT NULL DEFAULT 0,
	created_at  timestamptz NOT NULL,
	updated_at  timestamptz NOT NULL
)`

// newIntegrationRepository connects to PRODUCTS_TEST_DATABASE_URL and
// recreates an empty products table. The test is skipped when it is unset.
func newIntegrationRepository(t *testing.T) (*ProductRepository, *TxManager) {
	t.Helper()

	dsn := os.Getenv("PRODUCTS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PRODUCTS_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, createProductsTable)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE products RESTART IDENTITY")
	require.NoError(t, err)

	txm := NewTxManager(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewProductRepository(txm), txm
}

func TestIntegration_CRUD(t *testing.T) {
	repo, txm := newIntegrationRepository(t)
	ctx := context.Background()

	var saved *domain.Product
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		saved, err = repo.Save(ctx, &domain.Product{BarcodeID: "123", Name: "Tea", Price: decimal.RequireFromString("3.50")})
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	got, found, err := repo.FindOne(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Tea", got.Name)
	assert.True(t, decimal.RequireFromString("3.5").Equal(got.Price))

	saved.Name = "Green tea"
	updated, err := repo.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.True(t, saved.CreatedAt.Equal(updated.CreatedAt))

	byBarcode, found, err := repo.FindOneByBarcodeID(ctx, "123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Green tea", byBarcode.Name)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, saved.ID))
	require.NoError(t, repo.Delete(ctx, saved.ID))

	_, found, err = repo.FindOneByBarcodeID(ctx, "123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIntegration_RollbackOnError(t *testing.T) {
	repo, txm := newIntegrationRepository(t)
	ctx := context.Background()
	boom := errors.New("abort")

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Save(ctx, &domain.Product{BarcodeID: "rolled-back"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, found, err := repo.FindOneByBarcodeID(ctx, "rolled-back")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIntegration_ReadOnlyRejectsWrites(t *testing.T) {
	repo, txm := newIntegrationRepository(t)

	err := txm.ReadOnly(context.Background(), func(ctx context.Context) error {
		_, err := repo.Save(ctx, &domain.Product{BarcodeID: "ro"})
		return err
	})

	assert.Error(t, err)
}

func TestIntegration_PanicReleasesConnection(t *testing.T) {
	dsn := os.Getenv("PRODUCTS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PRODUCTS_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := NewTxManager(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Panics(t, func() {
		_ = txm.RunInTransaction(ctx, func(context.Context) error {
			panic("boom")
		})
	})

	assert.Zero(t, pool.Stat().AcquiredConns())
}
