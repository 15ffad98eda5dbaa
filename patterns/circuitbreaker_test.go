package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

type scriptedStore struct {
	store.Store
	err   error
	calls int
}

func (s *scriptedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.calls++
	return s.err
}

func (s *scriptedStore) GetBook(ctx context.Context, bookID int64) (*models.Book, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Book{ID: bookID}, nil
}

func TestTxBreaker_BusinessErrorsDoNotTrip(t *testing.T) {
	inner := &scriptedStore{err: store.ErrStockRefused}
	b := NewTxBreaker(inner, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		err := b.WithinTx(context.Background(), nil)
		require.ErrorIs(t, err, store.ErrStockRefused)
	}
	assert.Equal(t, 5, inner.calls)
	assert.Equal(t, "closed", b.State())
}

func TestTxBreaker_OutagesOpenTheCircuit(t *testing.T) {
	inner := &scriptedStore{err: &pq.Error{Code: "08006"}}
	b := NewTxBreaker(inner, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		err := b.WithinTx(context.Background(), nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, store.ErrUnavailable), "inner error is returned while closed")
	}
	assert.Equal(t, "open", b.State())

	err := b.WithinTx(context.Background(), nil)
	require.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the database")
}

func TestTxBreaker_TimeoutsDoNotTrip(t *testing.T) {
	mem := store.NewMemoryStore()
	b := NewTxBreaker(mem, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		err := b.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			<-ctx.Done()
			return ctx.Err()
		})
		cancel()
		require.ErrorIs(t, err, store.ErrConflict)
		assert.False(t, errors.Is(err, store.ErrUnavailable))
	}
	assert.Equal(t, "closed", b.State())

	err := b.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error { return nil })
	require.NoError(t, err)
}

func TestTxBreaker_GuardsReads(t *testing.T) {
	inner := &scriptedStore{err: &pq.Error{Code: "08006"}}
	b := NewTxBreaker(inner, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := b.GetBook(context.Background(), 1)
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.GetBook(context.Background(), 1)
	require.ErrorIs(t, err, store.ErrUnavailable)
	err = b.WithinTx(context.Background(), nil)
	require.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestWithTimeout_DefaultsNonPositive(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultTxTimeout), deadline, time.Second)
}
