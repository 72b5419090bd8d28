package ledger

import (
	"context"

	"github.com/idilsaglam/todochain/internal/address"
)

// Overlay buffers writes on top of committed state. Nothing reaches the
// underlying map until Apply is called.
type Overlay struct {
	read   func(address.Address) (Account, bool)
	writes map[address.Address]*Account // nil entry marks a delete
}

func NewOverlay(read func(address.Address) (Account, bool)) *Overlay {
	return &Overlay{
		read:   read,
		writes: make(map[address.Address]*Account),
	}
}

func (o *Overlay) Get(_ context.Context, addr address.Address) (Account, bool, error) {
	if w, ok := o.writes[addr]; ok {
		if w == nil {
			return Account{}, false, nil
		}
		return w.Clone(), true, nil
	}
	acct, found := o.read(addr)
	if !found {
		return Account{}, false, nil
	}
	acct = acct.Clone()
	acct.Address = addr
	return acct, true, nil
}

func (o *Overlay) Put(_ context.Context, acct Account) error {
	c := acct.Clone()
	o.writes[acct.Address] = &c
	return nil
}

func (o *Overlay) Delete(_ context.Context, addr address.Address) error {
	o.writes[addr] = nil
	return nil
}

// Dirty reports whether any write is buffered.
func (o *Overlay) Dirty() bool { return len(o.writes) > 0 }

// Apply writes the buffered changes into dst.
func (o *Overlay) Apply(dst map[address.Address]Account) {
	for addr, w := range o.writes {
		if w == nil {
			delete(dst, addr)
			continue
		}
		dst[addr] = *w
	}
}
