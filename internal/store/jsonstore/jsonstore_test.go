package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	return s
}

func TestUpdate_PersistsAcrossReopen(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	wallet := address.Address{1}
	program := address.Address{9}
	rec := address.Address{2}

	require.NoError(t, s.Update(ctx, wallet, func(tx *ledger.Tx) error {
		if err := tx.Credit(wallet, 5_000_000); err != nil {
			return err
		}
		return tx.CreateAccount(rec, wallet, program, 8, []byte{1, 2, 3})
	}))

	again, err := Open(s.Path())
	require.NoError(t, err)
	require.NoError(t, again.View(ctx, func(tx *ledger.Tx) error {
		acct, err := tx.Account(rec)
		require.NoError(t, err)
		assert.Equal(t, rec, acct.Address)
		assert.Equal(t, program, acct.Program)
		assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, acct.Data)
		assert.Equal(t, ledger.MinimumBalance(8), acct.Lamports)

		bal, err := tx.Balance(wallet)
		require.NoError(t, err)
		assert.Equal(t, 5_000_000-ledger.MinimumBalance(8), bal)
		return nil
	}))
}

func TestUpdate_ErrorLeavesFileUntouched(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	wallet := address.Address{1}

	require.NoError(t, s.Update(ctx, wallet, func(tx *ledger.Tx) error {
		return tx.Credit(wallet, 10)
	}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, wallet, func(tx *ledger.Tx) error {
		require.NoError(t, tx.Credit(wallet, 10))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_NoWritesSkipsFile(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Update(context.Background(), address.Address{1}, func(*ledger.Tx) error {
		return nil
	}))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_RejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"version":`},
		{"wrong version", `{"version":2,"accounts":{}}`},
		{"missing accounts", `{"version":1}`},
		{"bad address key", `{"version":1,"accounts":{"0OIl":{"program":"11111111111111111111111111111111","lamports":1,"space":0}}}`},
		{"negative lamports", `{"version":1,"accounts":{"11111111111111111111111111111112":{"program":"11111111111111111111111111111111","lamports":-1,"space":0}}}`},
		{"unknown field", `{"version":1,"accounts":{},"extra":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Open(path)
			assert.Error(t, err)
		})
	}
}

func TestView_ReadOnly(t *testing.T) {
	s := openTemp(t)
	err := s.View(context.Background(), func(tx *ledger.Tx) error {
		return tx.Credit(address.Address{1}, 1)
	})
	assert.ErrorIs(t, err, ledger.ErrReadOnly)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
