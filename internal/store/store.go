// Package store opens the ledger backend named by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/idilsaglam/todochain/internal/config"
	"github.com/idilsaglam/todochain/internal/ledger"
	"github.com/idilsaglam/todochain/internal/store/jsonstore"
	"github.com/idilsaglam/todochain/internal/store/memstore"
	"github.com/idilsaglam/todochain/internal/store/sqlstore"
)

// Migrator is implemented by backends that need schema setup.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Open returns the configured backend. SQL backends are migrated on open so
// a fresh database is usable immediately.
func Open(ctx context.Context, cfg config.StoreConfig) (ledger.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendJSON:
		return jsonstore.Open(cfg.Path)
	case config.BackendSQLite, config.BackendPostgres:
		driver, dsn := sqlstore.DriverSQLite, cfg.Path
		if cfg.Backend == config.BackendPostgres {
			driver, dsn = sqlstore.DriverPostgres, cfg.DSN
		}
		s, err := sqlstore.Open(ctx, sqlstore.NewConfig(driver, dsn))
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
