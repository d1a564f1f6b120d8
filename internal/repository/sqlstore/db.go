// Package sqlstore implements the reference store on PostgreSQL or a local
// SQLite file.
package sqlstore

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers "sqlite"

	"dupcheck/internal/config"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultTable is the table created by the embedded migrations.
const DefaultTable = "invoices"

// NewDB opens the reference store database.
func NewDB(cfg *config.StoreConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		db, err := sqlx.Connect("sqlite", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %s: %w", cfg.SQLitePath, err)
		}
		// One writer at a time; a second connection would only wait on the lock.
		db.SetMaxOpenConns(1)
		return db, nil

	case DriverPostgres:
		db, err := sqlx.Connect("pgx", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpen)
		db.SetMaxIdleConns(cfg.MaxIdle)
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
