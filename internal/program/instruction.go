package program

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/idilsaglam/todochain/internal/address"
)

// Op names one of the four operations.
type Op uint8

const (
	OpInitializeUser Op = iota + 1
	OpAddTodo
	OpMarkTodo
	OpRemoveTodo
)

var opNames = map[Op]string{
	OpInitializeUser: "initialize_user",
	OpAddTodo:        "add_todo",
	OpMarkTodo:       "mark_todo",
	OpRemoveTodo:     "remove_todo",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

var (
	ErrUnknownInstruction   = errors.New("unknown instruction")
	ErrMalformedInstruction = errors.New("malformed instruction data")
)

var opByDiscriminator = func() map[[discriminatorSize]byte]Op {
	m := make(map[[discriminatorSize]byte]Op, len(opNames))
	for op, name := range opNames {
		m[discriminator("global:"+name)] = op
	}
	return m
}()

// Accounts are the addresses an instruction touches. Todo is zero for
// initialize_user.
type Accounts struct {
	Authority address.Address
	Profile   address.Address
	Todo      address.Address
}

// Instruction is one decoded operation request.
type Instruction struct {
	Op       Op
	Accounts Accounts
	Content  string // add_todo
	Index    uint8  // mark_todo, remove_todo
}

func NewInitializeUser(program, owner address.Address) (Instruction, error) {
	profile, _, err := ProfileAddress(program, owner)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Op:       OpInitializeUser,
		Accounts: Accounts{Authority: owner, Profile: profile},
	}, nil
}

// NewAddTodo targets the slot at nextIndex, which must be the profile's
// current next_index for the handler to accept it.
func NewAddTodo(program, owner address.Address, nextIndex uint8, content string) (Instruction, error) {
	ix, err := itemInstruction(OpAddTodo, program, owner, nextIndex)
	if err != nil {
		return Instruction{}, err
	}
	ix.Content = content
	return ix, nil
}

func NewMarkTodo(program, owner address.Address, index uint8) (Instruction, error) {
	ix, err := itemInstruction(OpMarkTodo, program, owner, index)
	ix.Index = index
	return ix, err
}

func NewRemoveTodo(program, owner address.Address, index uint8) (Instruction, error) {
	ix, err := itemInstruction(OpRemoveTodo, program, owner, index)
	ix.Index = index
	return ix, err
}

func itemInstruction(op Op, program, owner address.Address, index uint8) (Instruction, error) {
	profile, _, err := ProfileAddress(program, owner)
	if err != nil {
		return Instruction{}, err
	}
	todo, _, err := TodoAddress(program, owner, index)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Op:       op,
		Accounts: Accounts{Authority: owner, Profile: profile, Todo: todo},
	}, nil
}

// Borsh bodies of an instruction, after its discriminator.
type (
	accountsArgs struct {
		Authority [address.Size]byte
		Profile   [address.Size]byte
		Todo      [address.Size]byte
	}
	addTodoArgs struct{ Content string }
	indexArgs   struct{ Index uint8 }
)

const accountsSize = 3 * address.Size

// MarshalBinary encodes discriminator, the three accounts, then the
// op-specific arguments.
func (ix Instruction) MarshalBinary() ([]byte, error) {
	name, ok := opNames[ix.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstruction, ix.Op)
	}
	disc := discriminator("global:" + name)

	parts := []any{accountsArgs{
		Authority: ix.Accounts.Authority,
		Profile:   ix.Accounts.Profile,
		Todo:      ix.Accounts.Todo,
	}}
	switch ix.Op {
	case OpAddTodo:
		parts = append(parts, addTodoArgs{Content: ix.Content})
	case OpMarkTodo, OpRemoveTodo:
		parts = append(parts, indexArgs{Index: ix.Index})
	}

	buf := append(make([]byte, 0, discriminatorSize+accountsSize+4+len(ix.Content)), disc[:]...)
	for _, p := range parts {
		b, err := borsh.Serialize(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ix.Op, err)
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func (ix *Instruction) UnmarshalBinary(data []byte) error {
	head := discriminatorSize + accountsSize
	if len(data) < head {
		return fmt.Errorf("%w: %d bytes", ErrMalformedInstruction, len(data))
	}
	op, ok := opByDiscriminator[[discriminatorSize]byte(data[:discriminatorSize])]
	if !ok {
		return ErrUnknownInstruction
	}

	var accs accountsArgs
	if err := borsh.Deserialize(&accs, data[discriminatorSize:head]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	out := Instruction{
		Op:       op,
		Accounts: Accounts{Authority: accs.Authority, Profile: accs.Profile, Todo: accs.Todo},
	}

	rest := data[head:]
	switch op {
	case OpInitializeUser:
		if len(rest) != 0 {
			return fmt.Errorf("%w: %d trailing bytes", ErrMalformedInstruction, len(rest))
		}
	case OpAddTodo:
		if len(rest) < 4 {
			return fmt.Errorf("%w: missing content length", ErrMalformedInstruction)
		}
		n := binary.LittleEndian.Uint32(rest)
		if uint64(n) != uint64(len(rest)-4) {
			return fmt.Errorf("%w: content length %d, have %d bytes", ErrMalformedInstruction, n, len(rest)-4)
		}
		var args addTodoArgs
		if err := borsh.Deserialize(&args, rest); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
		}
		out.Content = args.Content
	case OpMarkTodo, OpRemoveTodo:
		if len(rest) != 1 {
			return fmt.Errorf("%w: expected index byte", ErrMalformedInstruction)
		}
		var args indexArgs
		if err := borsh.Deserialize(&args, rest); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
		}
		out.Index = args.Index
	}
	*ix = out
	return nil
}
