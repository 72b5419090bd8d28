package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/idilsaglam/todochain/internal/address"
)

// Tx carries the host semantics (allocation, deposits, refunds) on top of a
// backend's Records.
type Tx struct {
	ctx      context.Context
	records  Records
	readOnly bool
}

func NewTx(ctx context.Context, records Records) *Tx {
	return &Tx{ctx: ctx, records: records}
}

func NewReadOnlyTx(ctx context.Context, records Records) *Tx {
	return &Tx{ctx: ctx, records: records, readOnly: true}
}

func (tx *Tx) Context() context.Context { return tx.ctx }

// Account loads the account at addr or fails with ErrAccountNotFound.
func (tx *Tx) Account(addr address.Address) (Account, error) {
	acct, found, err := tx.records.Get(tx.ctx, addr)
	if err != nil {
		return Account{}, fmt.Errorf("load %s: %w", addr, err)
	}
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acct, nil
}

// Exists reports whether an account is allocated at addr.
func (tx *Tx) Exists(addr address.Address) (bool, error) {
	_, found, err := tx.records.Get(tx.ctx, addr)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", addr, err)
	}
	return found, nil
}

// Balance returns the lamports held at addr; a missing account holds zero.
func (tx *Tx) Balance(addr address.Address) (uint64, error) {
	acct, found, err := tx.records.Get(tx.ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", addr, err)
	}
	if !found {
		return 0, nil
	}
	return acct.Lamports, nil
}

// CreateAccount allocates space bytes at addr owned by program, moving the
// rent-exempt deposit from payer's wallet.
func (tx *Tx) CreateAccount(addr, payer, program address.Address, space int, data []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if space < 0 || space > MaxSpace || len(data) > space {
		return fmt.Errorf("%w: %d bytes into %d", ErrAccountTooLarge, len(data), space)
	}
	inUse, err := tx.Exists(addr)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}

	deposit := MinimumBalance(space)
	if err := tx.debit(payer, deposit); err != nil {
		return err
	}

	buf := make([]byte, space)
	copy(buf, data)
	return tx.put(Account{
		Address:  addr,
		Program:  program,
		Lamports: deposit,
		Space:    space,
		Data:     buf,
	})
}

// WriteAccount replaces the data of an existing account in place.
func (tx *Tx) WriteAccount(addr address.Address, data []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	acct, err := tx.Account(addr)
	if err != nil {
		return err
	}
	if len(data) > acct.Space {
		return fmt.Errorf("%w: %d bytes into %d", ErrAccountTooLarge, len(data), acct.Space)
	}
	buf := make([]byte, acct.Space)
	copy(buf, data)
	acct.Data = buf
	return tx.put(acct)
}

// CloseAccount deletes the account at addr and refunds its lamports to refundTo.
func (tx *Tx) CloseAccount(addr, refundTo address.Address) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	acct, err := tx.Account(addr)
	if err != nil {
		return err
	}
	if err := tx.records.Delete(tx.ctx, addr); err != nil {
		return fmt.Errorf("delete %s: %w", addr, err)
	}
	return tx.Credit(refundTo, acct.Lamports)
}

// Credit adds lamports to a wallet, creating it when missing.
func (tx *Tx) Credit(addr address.Address, lamports uint64) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	acct, found, err := tx.records.Get(tx.ctx, addr)
	if err != nil {
		return fmt.Errorf("load %s: %w", addr, err)
	}
	if !found {
		acct = Account{Address: addr, Program: SystemProgram}
	}
	if acct.Lamports > math.MaxUint64-lamports {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	acct.Lamports += lamports
	return tx.put(acct)
}

func (tx *Tx) debit(addr address.Address, lamports uint64) error {
	acct, found, err := tx.records.Get(tx.ctx, addr)
	if err != nil {
		return fmt.Errorf("load %s: %w", addr, err)
	}
	if !found || acct.Lamports < lamports {
		have := uint64(0)
		if found {
			have = acct.Lamports
		}
		return fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, addr, have, lamports)
	}
	acct.Lamports -= lamports
	return tx.put(acct)
}

func (tx *Tx) put(acct Account) error {
	if err := tx.records.Put(tx.ctx, acct); err != nil {
		return fmt.Errorf("store %s: %w", acct.Address, err)
	}
	return nil
}
