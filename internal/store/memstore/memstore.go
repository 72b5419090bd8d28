// Package memstore keeps the ledger in process memory. State is lost on
// exit; it backs tests and throwaway sessions.
package memstore

import (
	"context"
	"sync"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[address.Address]ledger.Account
	locks    sync.Map // address.Address -> *sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[address.Address]ledger.Account)}
}

func (s *Store) read(addr address.Address) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[addr]
	return acct, ok
}

func (s *Store) keyLock(key address.Address) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Update runs fn with writes buffered; they are applied only if fn succeeds.
// Updates sharing a key never interleave.
func (s *Store) Update(ctx context.Context, key address.Address, fn func(*ledger.Tx) error) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ov := ledger.NewOverlay(s.read)
	if err := fn(ledger.NewTx(ctx, ov)); err != nil {
		return err
	}

	s.mu.Lock()
	ov.Apply(s.accounts)
	s.mu.Unlock()
	return nil
}

func (s *Store) View(ctx context.Context, fn func(*ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ledger.NewReadOnlyTx(ctx, ledger.NewOverlay(s.read)))
}

func (s *Store) Close() error { return nil }

// Len reports how many accounts exist, wallets included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
