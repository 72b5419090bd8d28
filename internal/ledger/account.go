// Package ledger is the local host runtime's account layer: addressed
// records, deposit accounting and the transactional store contract the
// storage backends implement.
package ledger

import (
	"context"
	"errors"

	"github.com/idilsaglam/todochain/internal/address"
)

// SystemProgram owns wallet accounts. They carry lamports and no data.
var SystemProgram = address.Zero

const (
	// LamportsPerByteYear and ExemptionYears give the rent-exempt minimum.
	LamportsPerByteYear uint64 = 3480
	ExemptionYears      uint64 = 2

	// AccountOverhead is charged on top of every account's data space.
	AccountOverhead = 128

	// MaxSpace bounds a single account's data.
	MaxSpace = 10 * 1024 * 1024
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInUse      = errors.New("account already in use")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountTooLarge   = errors.New("account data exceeds allocated space")
	ErrReadOnly          = errors.New("transaction is read-only")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Account is one addressed record as the host stores it.
type Account struct {
	Address  address.Address `json:"-"`
	Program  address.Address `json:"program"`
	Lamports uint64          `json:"lamports"`
	Space    int             `json:"space"`
	Data     []byte          `json:"data,omitempty"`
}

// Clone returns a deep copy so callers never alias stored data.
func (a Account) Clone() Account {
	if a.Data != nil {
		a.Data = append([]byte(nil), a.Data...)
	}
	return a
}

// MinimumBalance is the deposit an account of the given space must hold.
func MinimumBalance(space int) uint64 {
	return uint64(AccountOverhead+space) * LamportsPerByteYear * ExemptionYears
}

// Records is the raw read/write surface a backend exposes inside one
// transaction. Get reports found=false for a missing address.
type Records interface {
	Get(ctx context.Context, addr address.Address) (acct Account, found bool, err error)
	Put(ctx context.Context, acct Account) error
	Delete(ctx context.Context, addr address.Address) error
}

// Store applies transactions atomically. Update serializes callers that pass
// the same key; a non-nil error from fn discards every write.
type Store interface {
	Update(ctx context.Context, key address.Address, fn func(*Tx) error) error
	View(ctx context.Context, fn func(*Tx) error) error
	Close() error
}
