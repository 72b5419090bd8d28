// Package sqlstore keeps the ledger in a SQL table. PostgreSQL and SQLite are
// supported; each ledger transaction is one database transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/ledger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	tableName = "accounts"
)

var columns = []string{"program", "lamports", "space", "data"}

type Config struct {
	Driver          string
	DSN             string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

func NewConfig(driver, dsn string) *Config {
	return &Config{
		Driver:          driver,
		DSN:             dsn,
		ConnMaxLifetime: 10 * time.Minute,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
	}
}

type Store struct {
	db       *sqlx.DB
	ph       squirrel.PlaceholderFormat
	postgres bool
	locks    sync.Map // address.Address -> *sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// Open connects and pings. SQLite gets a single connection so writers
// never race for the database lock.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an open handle. The dialect follows db.DriverName().
func New(db *sqlx.DB) *Store {
	s := &Store{db: db, ph: squirrel.Question}
	if db.DriverName() == DriverPostgres {
		s.ph = squirrel.Dollar
		s.postgres = true
	}
	return s
}

// Migrate creates the accounts table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.postgres {
		blob = "BYTEA"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	address TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	lamports BIGINT NOT NULL,
	space INTEGER NOT NULL,
	data %s
)`, tableName, blob)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}
	return nil
}

func (s *Store) keyLock(key address.Address) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Update runs fn inside a database transaction. On PostgreSQL an advisory
// lock derived from key serializes writers across processes.
func (s *Store) Update(ctx context.Context, key address.Address, fn func(*ledger.Tx) error) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	return s.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		if s.postgres {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockID(key)); err != nil {
				return fmt.Errorf("advisory lock: %w", err)
			}
		}
		return fn(ledger.NewTx(ctx, &records{store: s, tx: tx, forUpdate: s.postgres}))
	})
}

func (s *Store) View(ctx context.Context, fn func(*ledger.Tx) error) error {
	var opts *sql.TxOptions
	if s.postgres {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	return s.withTx(ctx, opts, func(tx *sqlx.Tx) error {
		return fn(ledger.NewReadOnlyTx(ctx, &records{store: s, tx: tx}))
	})
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func lockID(key address.Address) int64 {
	return int64(binary.BigEndian.Uint64(key[:8]))
}

type accountRow struct {
	Program  string `db:"program"`
	Lamports int64  `db:"lamports"`
	Space    int    `db:"space"`
	Data     []byte `db:"data"`
}

// records implements ledger.Records over one open transaction.
type records struct {
	store     *Store
	tx        *sqlx.Tx
	forUpdate bool
}

func (r *records) Get(ctx context.Context, addr address.Address) (ledger.Account, bool, error) {
	q := squirrel.Select(columns...).
		From(tableName).
		Where(squirrel.Eq{"address": addr.String()}).
		PlaceholderFormat(r.store.ph)
	if r.forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("build select: %w", err)
	}

	var row accountRow
	if err := r.tx.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Account{}, false, nil
		}
		return ledger.Account{}, false, fmt.Errorf("select account: %w", err)
	}

	program, err := address.Parse(row.Program)
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("account %s: program: %w", addr, err)
	}
	if row.Lamports < 0 {
		return ledger.Account{}, false, fmt.Errorf("account %s: negative lamports", addr)
	}
	return ledger.Account{
		Address:  addr,
		Program:  program,
		Lamports: uint64(row.Lamports),
		Space:    row.Space,
		Data:     row.Data,
	}, true, nil
}

func (r *records) Put(ctx context.Context, acct ledger.Account) error {
	if acct.Lamports > math.MaxInt64 {
		return fmt.Errorf("account %s: %w", acct.Address, ledger.ErrBalanceOverflow)
	}
	query, args, err := squirrel.Insert(tableName).
		Columns(append([]string{"address"}, columns...)...).
		Values(acct.Address.String(), acct.Program.String(), int64(acct.Lamports), acct.Space, acct.Data).
		Suffix("ON CONFLICT (address) DO UPDATE SET program = EXCLUDED.program, lamports = EXCLUDED.lamports, space = EXCLUDED.space, data = EXCLUDED.data").
		PlaceholderFormat(r.store.ph).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (r *records) Delete(ctx context.Context, addr address.Address) error {
	query, args, err := squirrel.Delete(tableName).
		Where(squirrel.Eq{"address": addr.String()}).
		PlaceholderFormat(r.store.ph).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
