// Package address derives the deterministic storage addresses records live at.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the length of an address in bytes.
const Size = 32

const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const derivationMarker = "ProgramDerivedAddress"

var (
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
	ErrOnCurve       = errors.New("derived address lies on the ed25519 curve")
	ErrNoValidNonce  = errors.New("no valid nonce found for seeds")
	ErrInvalidLength = errors.New("invalid address length")
)

// Address identifies an owner, a program or a record slot.
type Address [Size]byte

// Zero is the all-zero address; it names the system program.
var Zero Address

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) IsZero() bool { return a == Zero }

// Bytes returns a copy of the address bytes, usable as a seed.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("decode address %q: %w", s, err)
	}
	return FromBytes(raw)
}

// MustParse is Parse for constants known to be valid.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromSeeds hashes seeds, nonce and program into an address. The result must
// not be a valid curve point, so no private key can exist for it.
func FromSeeds(program Address, nonce uint8, seeds ...[]byte) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, fmt.Errorf("%w: %d seeds", ErrMaxSeedLength, len(seeds))
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return Zero, fmt.Errorf("%w: %d bytes", ErrMaxSeedLength, len(s))
		}
		h.Write(s)
	}
	h.Write([]byte{nonce})
	h.Write(program[:])
	h.Write([]byte(derivationMarker))

	var a Address
	copy(a[:], h.Sum(nil))
	if OnCurve(a) {
		return Zero, ErrOnCurve
	}
	return a, nil
}

// Derive searches nonces from 255 down to 0 and returns the first one whose
// address is off the curve.
func Derive(program Address, seeds ...[]byte) (Address, uint8, error) {
	for n := 255; n >= 0; n-- {
		a, err := FromSeeds(program, uint8(n), seeds...)
		if err == nil {
			return a, uint8(n), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoValidNonce
}

// OnCurve reports whether a decodes to a point on edwards25519.
func OnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
