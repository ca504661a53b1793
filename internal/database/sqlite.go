package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

var sqliteDialect = dialect{
	name: "sqlite",
	bootstrap: `CREATE TABLE IF NOT EXISTS schema_migrations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL UNIQUE,
		applied_at  TEXT    NOT NULL
	)`,
	// go-sqlite3 executes multi-statement strings in one Exec.
	split: func(src string) []string { return []string{src} },
	upsertSuffix: func(conflictCols, updateCols []string) string {
		if len(updateCols) == 0 {
			return fmt.Sprintf("ON CONFLICT(%s) DO NOTHING", strings.Join(conflictCols, ", "))
		}
		return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s",
			strings.Join(conflictCols, ", "), strings.Join(updateCols, ", "))
	},
	excluded: func(col string) string { return "excluded." + col },
}

// SQLiteDB implements DB using SQLite via mattn/go-sqlite3.
type SQLiteDB struct {
	*sqlDB
	path string
}

// NewSQLite opens (or creates) the SQLite database at cfg.Path.
func NewSQLite(cfg config.DatabaseConfig) (*SQLiteDB, error) {
	path := cfg.Path
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, config.DefaultDBFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Webhook workers write concurrently; busy_timeout queues them behind
	// the single writer instead of failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteDB{sqlDB: &sqlDB{db: db, d: sqliteDialect}, path: path}
	if err := s.Ping(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return s, nil
}

// Path is the database file location.
func (s *SQLiteDB) Path() string { return s.path }
