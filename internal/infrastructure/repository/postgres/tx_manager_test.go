package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setTimeout = regexp.QuoteMeta("SET LOCAL statement_timeout = '30000ms'")

func newMockTxManager(t *testing.T) (*TxManager, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newTxManager(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func expectBegin(mock pgxmock.PgxPoolIface, access pgx.TxAccessMode) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: access})
	mock.ExpectExec(setTimeout).WillReturnResult(pgxmock.NewResult("SET", 0))
}

func TestRunInTransaction_Commits(t *testing.T) {
	m, mock := newMockTxManager(t)
	expectBegin(mock, pgx.ReadWrite)
	mock.ExpectCommit()

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, m.GetTx(ctx), "transaction travels in the context")
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	m, mock := newMockTxManager(t)
	expectBegin(mock, pgx.ReadWrite)
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := m.RunInTransaction(context.Background(), func(context.Context) error {
		return boom
	})

	assert.Same(t, boom, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_RollsBackOnPanic(t *testing.T) {
	m, mock := newMockTxManager(t)
	expectBegin(mock, pgx.ReadWrite)
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = m.RunInTransaction(context.Background(), func(context.Context) error {
			panic("boom")
		})
	})

	assert.NoError(t, mock.ExpectationsWereMet(), "panic releases the transaction")
}

func TestReadOnly_UsesReadOnlyAccessMode(t *testing.T) {
	m, mock := newMockTxManager(t)
	expectBegin(mock, pgx.ReadOnly)
	mock.ExpectCommit()

	err := m.ReadOnly(context.Background(), func(context.Context) error { return nil })

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_NestedCallsReuseTransaction(t *testing.T) {
	m, mock := newMockTxManager(t)
	expectBegin(mock, pgx.ReadWrite)
	mock.ExpectCommit()

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		outer := m.GetTx(ctx)
		return m.ReadOnly(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, m.GetTx(ctx))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_BeginFailure(t *testing.T) {
	m, mock := newMockTxManager(t)
	boom := errors.New("pool closed")
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}).WillReturnError(boom)

	called := false
	err := m.RunInTransaction(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQuerier_FallsBackToPool(t *testing.T) {
	m, mock := newMockTxManager(t)

	assert.Nil(t, m.GetTx(context.Background()))
	assert.Equal(t, mock, m.GetQuerier(context.Background()))
}
