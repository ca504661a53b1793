package database

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// Querier reads rows and runs raw statements.
type Querier interface {
	// Select scans every row into dest, a pointer to a slice of structs
	// (matched by db tags) or scalars.
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	// Get scans one row into dest. No match yields sql.ErrNoRows.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Writer persists db-tagged records.
type Writer interface {
	// Insert returns the new row ID, or 0 for tables keyed by text.
	Insert(ctx context.Context, table string, record interface{}) (int64, error)
	Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) error
	// Upsert updates every column outside conflictCols when the row exists.
	Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error
}

// DB is the analysis history backend: SQLite by default, MySQL for shared
// deployments.
type DB interface {
	Querier
	Writer

	// Migrate applies pending embedded migrations in filename order.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	// Driver returns "sqlite" or "mysql".
	Driver() string
}

// New returns the backend selected by cfg.Driver without touching the
// schema. An empty driver means SQLite.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}

// Open connects, pings and migrates. The caller owns Close.
func Open(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	db, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", db.Driver(), err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
