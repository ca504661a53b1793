package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// dialect is the SQL that differs between backends.
type dialect struct {
	name string
	// bootstrap creates the schema_migrations bookkeeping table.
	bootstrap string
	// split turns one migration file into executable statements.
	split func(src string) []string
	// upsertSuffix renders the conflict clause appended to an INSERT.
	upsertSuffix func(conflictCols, updateCols []string) string
	// excluded references the would-be-inserted value of col.
	excluded func(col string) string
}

// sqlDB implements DB over database/sql for one dialect. SQLiteDB and
// MySQLDB embed it.
type sqlDB struct {
	db *sql.DB
	d  dialect
}

func (s *sqlDB) Driver() string { return s.d.name }

func (s *sqlDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlDB) Close() error { return s.db.Close() }

// Migrate applies the embedded migrations in filename order.
func (s *sqlDB) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.db, s.d.name, s.d.bootstrap, s.d.split)
}

// Select executes query and scans all rows into dest (a pointer to a slice
// of structs or scalars).
func (s *sqlDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows, dest)
}

// Get executes query and scans a single row into dest.
// It returns sql.ErrNoRows when the query matches nothing.
func (s *sqlDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanOne(rows, dest)
}

// Exec executes a statement that returns no rows.
func (s *sqlDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Insert inserts a struct into table using its `db:` tags and returns the
// new row ID (0 for tables without an auto-increment key).
func (s *sqlDB) Insert(ctx context.Context, table string, record interface{}) (int64, error) {
	ins := insertSQL(table, record)
	res, err := s.db.ExecContext(ctx, ins.query, ins.vals...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// Update updates rows in table matching where.
func (s *sqlDB) Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) error {
	cols, vals := structToUpdate(record)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	// Table and where come from application code; values are bound.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
	if _, err := s.db.ExecContext(ctx, query, append(vals, args...)...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// Upsert inserts record, or updates every non-conflict column when a row
// with the same conflictCols already exists.
func (s *sqlDB) Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error {
	ins := insertSQL(table, record)
	updates := updateClause(ins.cols, conflictCols, s.d.excluded)
	query := ins.query + " " + s.d.upsertSuffix(conflictCols, updates)
	if _, err := s.db.ExecContext(ctx, query, ins.vals...); err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// insertStmt is a rendered INSERT with its bound values.
type insertStmt struct {
	query string
	cols  []string
	vals  []interface{}
}

func insertSQL(table string, record interface{}) insertStmt {
	cols, placeholders, vals := structToInsert(record)
	// Table and column names come from struct tags; values are bound.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return insertStmt{query: query, cols: cols, vals: vals}
}
