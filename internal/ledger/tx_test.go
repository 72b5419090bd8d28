package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todochain/internal/address"
)

func newTestTx(state map[address.Address]Account) (*Tx, *Overlay) {
	ov := NewOverlay(func(a address.Address) (Account, bool) {
		acct, ok := state[a]
		return acct, ok
	})
	return NewTx(context.Background(), ov), ov
}

func addr(b byte) address.Address {
	var a address.Address
	a[0] = b
	return a
}

func TestMinimumBalance(t *testing.T) {
	assert.Equal(t, uint64(890880), MinimumBalance(0))
	assert.Equal(t, uint64((128+42)*3480*2), MinimumBalance(42))
}

func TestCreateAccount_ChargesDeposit(t *testing.T) {
	payer, program, slot := addr(1), addr(2), addr(3)
	state := map[address.Address]Account{
		payer: {Address: payer, Program: SystemProgram, Lamports: 10_000_000},
	}
	tx, ov := newTestTx(state)

	require.NoError(t, tx.CreateAccount(slot, payer, program, 42, []byte{1, 2, 3}))

	acct, err := tx.Account(slot)
	require.NoError(t, err)
	assert.Equal(t, program, acct.Program)
	assert.Equal(t, MinimumBalance(42), acct.Lamports)
	assert.Len(t, acct.Data, 42)
	assert.Equal(t, []byte{1, 2, 3}, acct.Data[:3])

	bal, err := tx.Balance(payer)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-MinimumBalance(42), bal)

	// committed state is untouched until Apply
	assert.Equal(t, uint64(10_000_000), state[payer].Lamports)
	ov.Apply(state)
	assert.Contains(t, state, slot)
}

func TestCreateAccount_Errors(t *testing.T) {
	payer, program, slot := addr(1), addr(2), addr(3)

	t.Run("in use", func(t *testing.T) {
		tx, _ := newTestTx(map[address.Address]Account{
			payer: {Address: payer, Lamports: 10_000_000},
			slot:  {Address: slot, Program: program, Space: 1, Data: []byte{0}},
		})
		err := tx.CreateAccount(slot, payer, program, 42, nil)
		assert.ErrorIs(t, err, ErrAccountInUse)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		tx, _ := newTestTx(map[address.Address]Account{
			payer: {Address: payer, Lamports: 10},
		})
		err := tx.CreateAccount(slot, payer, program, 42, nil)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("missing payer", func(t *testing.T) {
		tx, _ := newTestTx(map[address.Address]Account{})
		err := tx.CreateAccount(slot, payer, program, 42, nil)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("data larger than space", func(t *testing.T) {
		tx, _ := newTestTx(map[address.Address]Account{
			payer: {Address: payer, Lamports: 10_000_000},
		})
		err := tx.CreateAccount(slot, payer, program, 2, []byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrAccountTooLarge)
	})
}

func TestCloseAccount_Refunds(t *testing.T) {
	owner, program, slot := addr(1), addr(2), addr(3)
	tx, _ := newTestTx(map[address.Address]Account{
		owner: {Address: owner, Lamports: 5},
		slot:  {Address: slot, Program: program, Lamports: 700, Space: 4, Data: make([]byte, 4)},
	})

	require.NoError(t, tx.CloseAccount(slot, owner))

	_, err := tx.Account(slot)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	bal, err := tx.Balance(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(705), bal)
}

func TestWriteAccount(t *testing.T) {
	program, slot := addr(2), addr(3)
	tx, _ := newTestTx(map[address.Address]Account{
		slot: {Address: slot, Program: program, Space: 4, Data: make([]byte, 4)},
	})

	require.NoError(t, tx.WriteAccount(slot, []byte{9, 9}))
	acct, err := tx.Account(slot)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 0, 0}, acct.Data)

	assert.ErrorIs(t, tx.WriteAccount(slot, make([]byte, 5)), ErrAccountTooLarge)
	assert.ErrorIs(t, tx.WriteAccount(addr(9), []byte{1}), ErrAccountNotFound)
}

func TestReadOnlyTx(t *testing.T) {
	ov := NewOverlay(func(address.Address) (Account, bool) { return Account{}, false })
	tx := NewReadOnlyTx(context.Background(), ov)

	assert.ErrorIs(t, tx.Credit(addr(1), 1), ErrReadOnly)
	assert.ErrorIs(t, tx.CreateAccount(addr(1), addr(2), addr(3), 1, nil), ErrReadOnly)
	assert.False(t, ov.Dirty())
}
