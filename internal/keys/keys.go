package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/idilsaglam/todochain/internal/address"
)

const (
	keyFileName = "id.json"
	envKeypair  = "TADA_KEYPAIR"
)

var (
	ErrNoKeypair = errors.New("no keypair: run `todo keygen` or set " + envKeypair)
	ErrExists    = errors.New("keypair file already exists")
)

// Keypair is the wallet that signs transactions.
type Keypair struct {
	Private ed25519.PrivateKey
	Source  string // "env" | "file" | "generated"
	Path    string // set when Source is "file"
}

func (k *Keypair) Address() address.Address {
	var a address.Address
	copy(a[:], k.Private.Public().(ed25519.PublicKey))
	return a
}

func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{Private: priv, Source: "generated"}, nil
}

func keyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

// DefaultPath is ~/.tada/id.json.
func DefaultPath() (string, error) {
	dir, err := keyDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, keyFileName), nil
}

// Load resolves the signing key: TADA_KEYPAIR (base58 secret) first, then
// the file at path, or the default path when path is empty.
func Load(path string) (*Keypair, error) {
	// 1) env override
	if env := strings.TrimSpace(os.Getenv(envKeypair)); env != "" {
		priv, err := decodeSecret(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envKeypair, err)
		}
		return &Keypair{Private: priv, Source: "env"}, nil
	}

	// 2) file
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeypair
		}
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(b, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair %s: byte out of range: %d", path, v)
		}
		raw = append(raw, byte(v))
	}
	priv, err := fromSecret(raw)
	if err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	return &Keypair{Private: priv, Source: "file", Path: path}, nil
}

// Save writes k as a JSON array of the 64 secret bytes, owner-only.
// An existing file is kept unless force is set.
func Save(k *Keypair, path string, force bool) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	// ensure the directory exists with 0700
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	ints := make([]int, len(k.Private))
	for i, b := range k.Private {
		ints[i] = int(b)
	}
	b, err := json.Marshal(ints)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0o600); err != nil {
		return "", fmt.Errorf("chmod: %w", err)
	}
	return path, nil
}

func Delete(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// EncodeSecret renders the secret in the form TADA_KEYPAIR accepts.
func EncodeSecret(k *Keypair) string { return base58.Encode(k.Private) }

func decodeSecret(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode base58: %w", err)
	}
	return fromSecret(raw)
}

// fromSecret accepts a 64-byte secret key or a 32-byte seed. A 64-byte key
// must carry the public half that matches its seed.
func fromSecret(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
			return nil, errors.New("public key does not match secret")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("secret is %d bytes, want %d or %d", len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}
