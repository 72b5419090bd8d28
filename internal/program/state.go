package program

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/near/borsh-go"

	"github.com/idilsaglam/todochain/internal/address"
)

// DefaultID is the program address used when none is configured.
var DefaultID = address.Address(sha256.Sum256([]byte("todochain/program")))

// Seed tags separating the two record namespaces.
var (
	ProfileTag = []byte("USER_STATE")
	TodoTag    = []byte("TODO_STATE")
)

const (
	discriminatorSize = 8

	// ProfileSpace: discriminator + owner + next_index + live_count.
	ProfileSpace = discriminatorSize + address.Size + 1 + 1

	// TodoSpace is the allocation for every todo record.
	TodoSpace = discriminatorSize + 64

	todoFixedSize = discriminatorSize + address.Size + 1 + 4 + 1

	// MaxContentLen is what a TodoSpace record can hold after its fixed fields.
	MaxContentLen = TodoSpace - todoFixedSize
)

var (
	profileDiscriminator = discriminator("account:UserProfile")
	todoDiscriminator    = discriminator("account:TodoAccount")
)

func discriminator(name string) [discriminatorSize]byte {
	var d [discriminatorSize]byte
	sum := sha256.Sum256([]byte(name))
	copy(d[:], sum[:discriminatorSize])
	return d
}

// UserProfile is the per-owner record tracking the todo counters.
type UserProfile struct {
	Owner     address.Address `json:"owner" yaml:"owner"`
	NextIndex uint8           `json:"next_index" yaml:"next_index"`
	LiveCount uint8           `json:"live_count" yaml:"live_count"`
}

// TodoItem is one todo at (owner, index).
type TodoItem struct {
	Owner     address.Address `json:"owner" yaml:"owner"`
	Index     uint8           `json:"index" yaml:"index"`
	Content   string          `json:"content" yaml:"content"`
	Completed bool            `json:"completed" yaml:"completed"`
}

// ProfileSeeds are the derivation seeds of owner's profile.
func ProfileSeeds(owner address.Address) [][]byte {
	return [][]byte{ProfileTag, owner.Bytes()}
}

// TodoSeeds are the derivation seeds of owner's todo at index.
func TodoSeeds(owner address.Address, index uint8) [][]byte {
	return [][]byte{TodoTag, owner.Bytes(), {index}}
}

// ProfileAddress derives where owner's profile lives under program.
func ProfileAddress(program, owner address.Address) (address.Address, uint8, error) {
	return address.Derive(program, ProfileSeeds(owner)...)
}

// TodoAddress derives where owner's todo at index lives under program.
func TodoAddress(program, owner address.Address, index uint8) (address.Address, uint8, error) {
	return address.Derive(program, TodoSeeds(owner, index)...)
}

// profileRecord and todoRecord are the borsh bodies that follow the
// discriminator. Completed travels as a byte so only 0 and 1 decode.
type profileRecord struct {
	Owner     [address.Size]byte
	NextIndex uint8
	LiveCount uint8
}

type todoRecord struct {
	Owner     [address.Size]byte
	Index     uint8
	Content   string
	Completed uint8
}

func withDiscriminator(disc [discriminatorSize]byte, body []byte) []byte {
	buf := make([]byte, 0, discriminatorSize+len(body))
	buf = append(buf, disc[:]...)
	return append(buf, body...)
}

func (p *UserProfile) MarshalBinary() ([]byte, error) {
	body, err := borsh.Serialize(profileRecord{Owner: p.Owner, NextIndex: p.NextIndex, LiveCount: p.LiveCount})
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return withDiscriminator(profileDiscriminator, body), nil
}

func (p *UserProfile) UnmarshalBinary(data []byte) error {
	if len(data) < ProfileSpace {
		return fmt.Errorf("profile: %w: %d bytes", errShortData, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) != profileDiscriminator {
		return errDiscriminator
	}
	var rec profileRecord
	if err := borsh.Deserialize(&rec, data[discriminatorSize:ProfileSpace]); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	*p = UserProfile{Owner: rec.Owner, NextIndex: rec.NextIndex, LiveCount: rec.LiveCount}
	return nil
}

func (t *TodoItem) MarshalBinary() ([]byte, error) {
	if len(t.Content) > MaxContentLen {
		return nil, fmt.Errorf("content is %d bytes, limit %d", len(t.Content), MaxContentLen)
	}
	rec := todoRecord{Owner: t.Owner, Index: t.Index, Content: t.Content}
	if t.Completed {
		rec.Completed = 1
	}
	body, err := borsh.Serialize(rec)
	if err != nil {
		return nil, fmt.Errorf("todo: %w", err)
	}
	return withDiscriminator(todoDiscriminator, body), nil
}

func (t *TodoItem) UnmarshalBinary(data []byte) error {
	if len(data) < todoFixedSize {
		return fmt.Errorf("todo: %w: %d bytes", errShortData, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) != todoDiscriminator {
		return errDiscriminator
	}
	// The length prefix is checked against what is left before borsh
	// allocates for it.
	lenAt := discriminatorSize + address.Size + 1
	n := uint64(binary.LittleEndian.Uint32(data[lenAt:]))
	if n > uint64(len(data)-todoFixedSize) {
		return fmt.Errorf("todo: %w: content length %d", errShortData, n)
	}
	end := todoFixedSize + int(n)

	var rec todoRecord
	if err := borsh.Deserialize(&rec, data[discriminatorSize:end]); err != nil {
		return fmt.Errorf("todo: %w", err)
	}
	if !utf8.ValidString(rec.Content) {
		return fmt.Errorf("todo: content is not valid utf-8")
	}
	if rec.Completed > 1 {
		return fmt.Errorf("todo: invalid completed flag %d", rec.Completed)
	}
	*t = TodoItem{Owner: rec.Owner, Index: rec.Index, Content: rec.Content, Completed: rec.Completed == 1}
	return nil
}
