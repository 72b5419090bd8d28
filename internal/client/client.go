// Package client builds, signs and submits todo instructions for one wallet
// and reads the resulting records back.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/keys"
	"github.com/idilsaglam/todochain/internal/ledger"
	"github.com/idilsaglam/todochain/internal/program"
	"github.com/idilsaglam/todochain/internal/runtime"
)

var ErrNoProfile = errors.New("profile not initialized: run `todo init`")

// Host is the part of the runtime a client talks to.
type Host interface {
	Program() address.Address
	Execute(ctx context.Context, tx runtime.Transaction) (*runtime.Receipt, error)
	Account(ctx context.Context, addr address.Address) (ledger.Account, bool, error)
	Balance(ctx context.Context, addr address.Address) (uint64, error)
	Airdrop(ctx context.Context, to address.Address, lamports uint64) error
}

type Client struct {
	host Host
	key  *keys.Keypair
}

func New(host Host, key *keys.Keypair) *Client {
	return &Client{host: host, key: key}
}

func (c *Client) Owner() address.Address { return c.key.Address() }

func (c *Client) Program() address.Address { return c.host.Program() }

func (c *Client) submit(ctx context.Context, ix program.Instruction, err error) (*runtime.Receipt, error) {
	if err != nil {
		return nil, err
	}
	tx, err := runtime.Sign(c.key.Private, c.host.Program(), ix)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", ix.Op, err)
	}
	return c.host.Execute(ctx, tx)
}

func (c *Client) InitializeUser(ctx context.Context) (*runtime.Receipt, error) {
	ix, err := program.NewInitializeUser(c.host.Program(), c.Owner())
	return c.submit(ctx, ix, err)
}

// AddTodo creates a todo at the profile's current next_index and reports
// that index.
func (c *Client) AddTodo(ctx context.Context, content string) (*runtime.Receipt, uint8, error) {
	profile, err := c.Profile(ctx)
	if err != nil {
		return nil, 0, err
	}
	if profile == nil {
		return nil, 0, ErrNoProfile
	}
	ix, err := program.NewAddTodo(c.host.Program(), c.Owner(), profile.NextIndex, content)
	receipt, err := c.submit(ctx, ix, err)
	return receipt, profile.NextIndex, err
}

func (c *Client) MarkTodo(ctx context.Context, index uint8) (*runtime.Receipt, error) {
	ix, err := program.NewMarkTodo(c.host.Program(), c.Owner(), index)
	return c.submit(ctx, ix, err)
}

func (c *Client) RemoveTodo(ctx context.Context, index uint8) (*runtime.Receipt, error) {
	ix, err := program.NewRemoveTodo(c.host.Program(), c.Owner(), index)
	return c.submit(ctx, ix, err)
}

// Profile returns nil when the owner has not initialized.
func (c *Client) Profile(ctx context.Context) (*program.UserProfile, error) {
	addr, _, err := program.ProfileAddress(c.host.Program(), c.Owner())
	if err != nil {
		return nil, err
	}
	data, ok, err := c.programData(ctx, addr)
	if err != nil || !ok {
		return nil, err
	}
	var p program.UserProfile
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("profile %s: %w", addr, err)
	}
	return &p, nil
}

// Todo returns nil when nothing lives at index.
func (c *Client) Todo(ctx context.Context, index uint8) (*program.TodoItem, error) {
	addr, _, err := program.TodoAddress(c.host.Program(), c.Owner(), index)
	if err != nil {
		return nil, err
	}
	data, ok, err := c.programData(ctx, addr)
	if err != nil || !ok {
		return nil, err
	}
	var item program.TodoItem
	if err := item.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("todo %s: %w", addr, err)
	}
	return &item, nil
}

// Todos lists the owner's live todos in index order. Indices of removed
// todos are skipped.
func (c *Client) Todos(ctx context.Context) ([]program.TodoItem, error) {
	profile, err := c.Profile(ctx)
	if err != nil || profile == nil {
		return nil, err
	}
	items := make([]program.TodoItem, 0, profile.LiveCount)
	for i := 0; i < int(profile.NextIndex); i++ {
		item, err := c.Todo(ctx, uint8(i))
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// Split partitions items into incomplete and completed, keeping order.
func Split(items []program.TodoItem) (incomplete, completed []program.TodoItem) {
	for _, it := range items {
		if it.Completed {
			completed = append(completed, it)
		} else {
			incomplete = append(incomplete, it)
		}
	}
	return incomplete, completed
}

func (c *Client) Balance(ctx context.Context) (uint64, error) {
	return c.host.Balance(ctx, c.Owner())
}

func (c *Client) Airdrop(ctx context.Context, lamports uint64) error {
	return c.host.Airdrop(ctx, c.Owner(), lamports)
}

// programData reads an account only if the program owns it.
func (c *Client) programData(ctx context.Context, addr address.Address) ([]byte, bool, error) {
	acct, found, err := c.host.Account(ctx, addr)
	if err != nil || !found {
		return nil, false, err
	}
	if acct.Program != c.host.Program() {
		return nil, false, fmt.Errorf("account %s is owned by %s", addr, acct.Program)
	}
	return acct.Data, true, nil
}
