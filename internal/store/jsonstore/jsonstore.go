package jsonstore

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

// JSON-backed ledger. Single file, human-readable, portable.
// Updates are serialized within one process; separate processes sharing a
// file are not coordinated.

const (
	DefaultFileName = "ledger.json"
	fileVersion     = 1
)

//go:embed schema.json
var schemaJSON string

var fileSchema = jsonschema.MustCompileString("ledger.schema.json", schemaJSON)

type file struct {
	Version  int                                `json:"version"`
	Accounts map[address.Address]ledger.Account `json:"accounts"`
}

type Store struct {
	mu   sync.Mutex
	path string
}

var _ ledger.Store = (*Store)(nil)

// DefaultPath places the ledger file in the working directory.
func DefaultPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return filepath.Join(wd, DefaultFileName), nil
}

// Open validates the file at path if it exists. A missing file is an empty
// ledger and is created on the first committed update.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonstore: empty path")
	}
	s := &Store{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) load() (map[address.Address]ledger.Account, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[address.Address]ledger.Account{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if err := fileSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.path, err)
	}

	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if f.Accounts == nil {
		f.Accounts = map[address.Address]ledger.Account{}
	}
	for addr, acct := range f.Accounts {
		acct.Address = addr
		f.Accounts[addr] = acct
	}
	return f.Accounts, nil
}

// save replaces the file atomically: write a sibling temp file, then rename.
func (s *Store) save(accounts map[address.Address]ledger.Account) error {
	b, err := json.MarshalIndent(file{Version: fileVersion, Accounts: accounts}, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// Update loads the ledger, runs fn over a write buffer and rewrites the file
// only when fn succeeds. The key is not needed: the whole file is one unit.
func (s *Store) Update(ctx context.Context, _ address.Address, fn func(*ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	accounts, err := s.load()
	if err != nil {
		return err
	}

	ov := ledger.NewOverlay(lookup(accounts))
	if err := fn(ledger.NewTx(ctx, ov)); err != nil {
		return err
	}
	if !ov.Dirty() {
		return nil
	}
	ov.Apply(accounts)
	return s.save(accounts)
}

func (s *Store) View(ctx context.Context, fn func(*ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	accounts, err := s.load()
	if err != nil {
		return err
	}
	return fn(ledger.NewReadOnlyTx(ctx, ledger.NewOverlay(lookup(accounts))))
}

func (s *Store) Close() error { return nil }

func lookup(accounts map[address.Address]ledger.Account) func(address.Address) (ledger.Account, bool) {
	return func(a address.Address) (ledger.Account, bool) {
		acct, ok := accounts[a]
		return acct, ok
	}
}
