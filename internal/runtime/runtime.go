// Package runtime is the local host: it verifies signed transactions, runs
// them against the program inside one ledger transaction and reports the
// program's log lines in a receipt.
package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
	"github.com/idilsaglam/todochain/internal/program"
)

var (
	ErrInvalidSignature = errors.New("signature verification failed")
	ErrProgramMismatch  = errors.New("transaction targets a different program")
	ErrNotWallet        = errors.New("airdrop target is not a wallet")
)

// Transaction is one signed instruction. The signature covers
// Program || Message.
type Transaction struct {
	Program   address.Address
	Signer    address.Address
	Message   []byte
	Signature []byte
}

// Sign encodes ix and signs it with key. The signer is key's public half.
func Sign(key ed25519.PrivateKey, programID address.Address, ix program.Instruction) (Transaction, error) {
	msg, err := ix.MarshalBinary()
	if err != nil {
		return Transaction{}, err
	}
	signer, err := address.FromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Program:   programID,
		Signer:    signer,
		Message:   msg,
		Signature: ed25519.Sign(key, payload(programID, msg)),
	}, nil
}

func payload(programID address.Address, msg []byte) []byte {
	out := make([]byte, 0, address.Size+len(msg))
	out = append(out, programID[:]...)
	return append(out, msg...)
}

// Receipt describes one executed transaction, successful or not.
type Receipt struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Op        string    `json:"op" yaml:"op"`
	Signature string    `json:"signature" yaml:"signature"`
	Logs      []string  `json:"logs" yaml:"logs"`
}

type Runtime struct {
	program address.Address
	store   ledger.Store
	log     *log.Logger
}

func New(programID address.Address, store ledger.Store, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.Default()
	}
	return &Runtime{program: programID, store: store, log: logger}
}

func (r *Runtime) Program() address.Address { return r.program }

// Execute verifies and applies tx. The receipt is returned whenever the
// instruction decoded, so callers can show program logs for failures too.
func (r *Runtime) Execute(ctx context.Context, tx Transaction) (*Receipt, error) {
	if tx.Program != r.program {
		return nil, fmt.Errorf("%w: %s", ErrProgramMismatch, tx.Program)
	}
	if len(tx.Signature) != ed25519.SignatureSize ||
		!ed25519.Verify(ed25519.PublicKey(tx.Signer[:]), payload(tx.Program, tx.Message), tx.Signature) {
		return nil, ErrInvalidSignature
	}

	var ix program.Instruction
	if err := ix.UnmarshalBinary(tx.Message); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:        uuid.New(),
		Op:        ix.Op.String(),
		Signature: base58.Encode(tx.Signature),
	}

	var buf bytes.Buffer
	progLog := log.NewWithOptions(&buf, log.Options{
		Level:     log.DebugLevel,
		Prefix:    "Program log",
		Formatter: log.TextFormatter,
	})

	err := r.store.Update(ctx, tx.Signer, func(ltx *ledger.Tx) error {
		return program.Process(&program.Context{
			Program: r.program,
			Signer:  tx.Signer,
			Tx:      ltx,
			Log:     progLog,
		}, ix)
	})

	receipt.Logs = splitLines(buf.String())
	for _, line := range receipt.Logs {
		r.log.Debug(line, "tx", receipt.ID)
	}
	if err != nil {
		r.log.Debug("transaction failed", "tx", receipt.ID, "op", receipt.Op, "err", err)
		return receipt, err
	}
	r.log.Debug("transaction committed", "tx", receipt.ID, "op", receipt.Op)
	return receipt, nil
}

// Airdrop credits a wallet out of thin air. Only the local host offers it.
// Derived record addresses are off the curve and never receive airdrops, so
// the lock on to never races a transaction writing a record.
func (r *Runtime) Airdrop(ctx context.Context, to address.Address, lamports uint64) error {
	if lamports == 0 {
		return errors.New("airdrop amount must be positive")
	}
	if !address.OnCurve(to) {
		return fmt.Errorf("%w: %s is a derived address", ErrNotWallet, to)
	}
	return r.store.Update(ctx, to, func(tx *ledger.Tx) error {
		acct, err := tx.Account(to)
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
		case err != nil:
			return err
		case acct.Program != ledger.SystemProgram:
			return fmt.Errorf("%w: %s is owned by %s", ErrNotWallet, to, acct.Program)
		}
		return tx.Credit(to, lamports)
	})
}

// Account reads one account. found is false when nothing is allocated there.
func (r *Runtime) Account(ctx context.Context, addr address.Address) (acct ledger.Account, found bool, err error) {
	err = r.store.View(ctx, func(tx *ledger.Tx) error {
		a, err := tx.Account(addr)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		acct, found = a, true
		return nil
	})
	return acct, found, err
}

func (r *Runtime) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	var bal uint64
	err := r.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		bal, err = tx.Balance(addr)
		return err
	})
	return bal, err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
