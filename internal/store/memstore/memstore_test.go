package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

func TestUpdate_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	wallet := address.Address{1}

	require.NoError(t, s.Update(ctx, wallet, func(tx *ledger.Tx) error {
		return tx.Credit(wallet, 500)
	}))

	require.NoError(t, s.View(ctx, func(tx *ledger.Tx) error {
		bal, err := tx.Balance(wallet)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), bal)
		return nil
	}))
}

func TestUpdate_DiscardsOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	wallet := address.Address{1}
	boom := errors.New("boom")

	err := s.Update(ctx, wallet, func(tx *ledger.Tx) error {
		require.NoError(t, tx.Credit(wallet, 500))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestUpdate_SameKeySerializes(t *testing.T) {
	s := New()
	ctx := context.Background()
	wallet := address.Address{7}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, wallet, func(tx *ledger.Tx) error {
				return tx.Credit(wallet, 1)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(tx *ledger.Tx) error {
		bal, err := tx.Balance(wallet)
		require.NoError(t, err)
		assert.Equal(t, uint64(50), bal)
		return nil
	}))
}

func TestView_ReadOnly(t *testing.T) {
	s := New()
	err := s.View(context.Background(), func(tx *ledger.Tx) error {
		return tx.Credit(address.Address{1}, 1)
	})
	assert.ErrorIs(t, err, ledger.ErrReadOnly)
}

func TestUpdate_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, address.Address{1}, func(*ledger.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
