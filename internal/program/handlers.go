// Package program implements the todo account model: the profile and todo
// records, their deterministic addresses, and the four operations that
// create and mutate them inside a host transaction.
package program

import (
	"io"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

// Context is what the host hands a handler for one instruction. Signer has
// already been verified by the host.
type Context struct {
	Program address.Address
	Signer  address.Address
	Tx      *ledger.Tx
	Log     *log.Logger
}

// Process validates and applies ix. Any error leaves the transaction for the
// host to discard.
func Process(c *Context, ix Instruction) error {
	if c.Log == nil {
		c.Log = log.New(io.Discard)
	}

	var err error
	if ix.Accounts.Authority != c.Signer {
		err = notAllowed("authority %s is not the signer", ix.Accounts.Authority)
	} else {
		switch ix.Op {
		case OpInitializeUser:
			err = initializeUser(c, ix)
		case OpAddTodo:
			err = addTodo(c, ix)
		case OpMarkTodo:
			err = markTodo(c, ix)
		case OpRemoveTodo:
			err = removeTodo(c, ix)
		default:
			err = ErrUnknownInstruction
		}
	}
	if err != nil {
		c.Log.Error("instruction failed", "op", ix.Op, "err", err)
		return &Error{Op: ix.Op.String(), Err: err}
	}
	return nil
}

func initializeUser(c *Context, ix Instruction) error {
	c.Log.Info("Initializing user profile", "authority", c.Signer)

	profileAddr, err := c.expect(ix.Accounts.Profile, ProfileSeeds(c.Signer))
	if err != nil {
		return err
	}

	profile := UserProfile{Owner: c.Signer}
	data, err := profile.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.Tx.CreateAccount(profileAddr, c.Signer, c.Program, ProfileSpace, data); err != nil {
		return err
	}

	c.Log.Info("User profile initialized",
		"authority", c.Signer, "next_index", profile.NextIndex, "live_count", profile.LiveCount)
	return nil
}

func addTodo(c *Context, ix Instruction) error {
	c.Log.Info("Adding todo", "authority", c.Signer)

	profileAddr, profile, err := c.ownedProfile(ix.Accounts.Profile)
	if err != nil {
		return err
	}
	todoAddr, err := c.expect(ix.Accounts.Todo, TodoSeeds(c.Signer, profile.NextIndex))
	if err != nil {
		return err
	}
	if len(ix.Content) > MaxContentLen {
		return notAllowed("content is %d bytes, limit is %d", len(ix.Content), MaxContentLen)
	}
	if !utf8.ValidString(ix.Content) {
		return notAllowed("content is not valid utf-8")
	}

	item := TodoItem{
		Owner:     c.Signer,
		Index:     profile.NextIndex,
		Content:   ix.Content,
		Completed: false,
	}
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.Tx.CreateAccount(todoAddr, c.Signer, c.Program, TodoSpace, data); err != nil {
		return err
	}

	// The record above is only kept if both increments succeed.
	next, err := checkedAdd(profile.NextIndex)
	if err != nil {
		return err
	}
	live, err := checkedAdd(profile.LiveCount)
	if err != nil {
		return err
	}
	profile.NextIndex, profile.LiveCount = next, live
	if err := c.writeProfile(profileAddr, profile); err != nil {
		return err
	}

	c.Log.Info("Todo added",
		"idx", item.Index, "content", item.Content,
		"next_index", profile.NextIndex, "live_count", profile.LiveCount)
	return nil
}

func markTodo(c *Context, ix Instruction) error {
	c.Log.Info("Marking todo as complete", "idx", ix.Index, "authority", c.Signer)

	if _, _, err := c.ownedProfile(ix.Accounts.Profile); err != nil {
		return err
	}
	todoAddr, item, err := c.ownedTodo(ix.Accounts.Todo, ix.Index)
	if err != nil {
		return err
	}
	if item.Completed {
		return ErrAlreadyMarked
	}

	item.Completed = true
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.Tx.WriteAccount(todoAddr, data); err != nil {
		return err
	}

	c.Log.Info("Todo marked as complete", "idx", ix.Index)
	return nil
}

func removeTodo(c *Context, ix Instruction) error {
	c.Log.Info("Removing todo", "idx", ix.Index, "authority", c.Signer)

	profileAddr, profile, err := c.ownedProfile(ix.Accounts.Profile)
	if err != nil {
		return err
	}
	todoAddr, _, err := c.ownedTodo(ix.Accounts.Todo, ix.Index)
	if err != nil {
		return err
	}

	live, err := checkedSub(profile.LiveCount)
	if err != nil {
		return err
	}
	profile.LiveCount = live

	if err := c.Tx.CloseAccount(todoAddr, c.Signer); err != nil {
		return err
	}
	if err := c.writeProfile(profileAddr, profile); err != nil {
		return err
	}

	c.Log.Info("Todo removed", "idx", ix.Index, "live_count", profile.LiveCount)
	return nil
}

// expect derives the address for seeds and requires the instruction to have
// named exactly that account.
func (c *Context) expect(provided address.Address, seeds [][]byte) (address.Address, error) {
	want, _, err := address.Derive(c.Program, seeds...)
	if err != nil {
		return address.Zero, err
	}
	if provided != want {
		return address.Zero, notAllowed("account %s does not match seeds, expected %s", provided, want)
	}
	return want, nil
}

func (c *Context) programAccount(addr address.Address) ([]byte, error) {
	acct, err := c.Tx.Account(addr)
	if err != nil {
		return nil, err
	}
	if acct.Program != c.Program {
		return nil, notAllowed("account %s is owned by %s", addr, acct.Program)
	}
	return acct.Data, nil
}

func (c *Context) ownedProfile(provided address.Address) (address.Address, UserProfile, error) {
	var profile UserProfile
	addr, err := c.expect(provided, ProfileSeeds(c.Signer))
	if err != nil {
		return addr, profile, err
	}
	data, err := c.programAccount(addr)
	if err != nil {
		return addr, profile, err
	}
	if err := profile.UnmarshalBinary(data); err != nil {
		return addr, profile, notAllowed("profile %s: %v", addr, err)
	}
	if profile.Owner != c.Signer {
		return addr, profile, ErrUnauthorized
	}
	return addr, profile, nil
}

func (c *Context) ownedTodo(provided address.Address, index uint8) (address.Address, TodoItem, error) {
	var item TodoItem
	addr, err := c.expect(provided, TodoSeeds(c.Signer, index))
	if err != nil {
		return addr, item, err
	}
	data, err := c.programAccount(addr)
	if err != nil {
		return addr, item, err
	}
	if err := item.UnmarshalBinary(data); err != nil {
		return addr, item, notAllowed("todo %s: %v", addr, err)
	}
	if item.Owner != c.Signer {
		return addr, item, ErrUnauthorized
	}
	return addr, item, nil
}

func (c *Context) writeProfile(addr address.Address, p UserProfile) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return c.Tx.WriteAccount(addr, data)
}

func checkedAdd(v uint8) (uint8, error) {
	if v == 255 {
		return 0, ErrMathOverflow
	}
	return v + 1, nil
}

func checkedSub(v uint8) (uint8, error) {
	if v == 0 {
		return 0, ErrMathOverflow
	}
	return v - 1, nil
}
