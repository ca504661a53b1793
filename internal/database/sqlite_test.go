package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

type runRow struct {
	ID         int64     `db:"id"`
	ProjectID  string    `db:"project_id"`
	PipelineID int64     `db:"pipeline_id"`
	Ref        string    `db:"ref"`
	Status     string    `db:"status"`
	Duration   float64   `db:"duration_seconds"`
	Reason     string    `db:"failure_reason"`
	CreatedAt  time.Time `db:"created_at"`
}

func openTestDB(t *testing.T) DB {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "guardian.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	var applied int
	require.NoError(t, db.Get(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, applied)
	assert.Equal(t, "sqlite", db.Driver())
}

func TestInsertSelectUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 8, 16, 0, 0, 0, time.UTC)

	id, err := db.Insert(ctx, "pipeline_runs", runRow{
		ProjectID: "42", PipelineID: 7, Ref: "main", Status: "failed",
		Duration: 120, Reason: "dependency", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	require.NoError(t, db.Upsert(ctx, "pipeline_runs", runRow{
		ProjectID: "42", PipelineID: 7, Ref: "main", Status: "success",
		Duration: 90, Reason: "", CreatedAt: at,
	}, []string{"project_id", "pipeline_id"}))

	var rows []runRow
	require.NoError(t, db.Select(ctx, &rows, `SELECT * FROM pipeline_runs WHERE project_id = ?`, "42"))
	require.Len(t, rows, 1)
	assert.Equal(t, "success", rows[0].Status)
	assert.Equal(t, 90.0, rows[0].Duration)
	assert.True(t, at.Equal(rows[0].CreatedAt))

	var one runRow
	require.NoError(t, db.Get(ctx, &one, `SELECT * FROM pipeline_runs WHERE pipeline_id = ?`, 7))
	assert.Equal(t, int64(7), one.PipelineID)

	err = db.Get(ctx, &one, `SELECT * FROM pipeline_runs WHERE pipeline_id = ?`, 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC()
	_, err := db.Insert(ctx, "pipeline_runs", runRow{ProjectID: "1", PipelineID: 1, Ref: "main", Status: "running", CreatedAt: at})
	require.NoError(t, err)

	require.NoError(t, db.Update(ctx, "pipeline_runs", runRow{ProjectID: "1", PipelineID: 1, Ref: "main", Status: "failed", Reason: "timeout", CreatedAt: at},
		"project_id = ? AND pipeline_id = ?", "1", 1))

	var status string
	require.NoError(t, db.Get(ctx, &status, `SELECT status FROM pipeline_runs WHERE pipeline_id = 1`))
	assert.Equal(t, "failed", status)
}

func TestSplitMySQL(t *testing.T) {
	stmts := splitMySQL("-- comment\nCREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, v REAL NOT NULL);\nCREATE INDEX IF NOT EXISTS i ON t (v);\n")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE t (id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, v DOUBLE NOT NULL)", stmts[0])
	assert.Equal(t, "CREATE INDEX i ON t (v)", stmts[1])
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestUpsertSuffixPerDialect(t *testing.T) {
	keys := []string{"project_id", "pipeline_id"}
	updates := updateClause([]string{"project_id", "pipeline_id", "status"}, keys, sqliteDialect.excluded)
	assert.Equal(t, "ON CONFLICT(project_id, pipeline_id) DO UPDATE SET status = excluded.status",
		sqliteDialect.upsertSuffix(keys, updates))
	assert.Equal(t, "ON CONFLICT(project_id, pipeline_id) DO NOTHING", sqliteDialect.upsertSuffix(keys, nil))

	updates = updateClause([]string{"project_id", "pipeline_id", "status"}, keys, mysqlDialect.excluded)
	assert.Equal(t, "ON DUPLICATE KEY UPDATE status = VALUES(status)", mysqlDialect.upsertSuffix(keys, updates))
	assert.Equal(t, "ON DUPLICATE KEY UPDATE project_id = project_id", mysqlDialect.upsertSuffix(keys, nil))
}

func TestWithParseTime(t *testing.T) {
	assert.Equal(t, "u:p@tcp(db:3306)/guardian?parseTime=true", withParseTime("u:p@tcp(db:3306)/guardian"))
	assert.Equal(t, "u@/g?tls=true&parseTime=true", withParseTime("u@/g?tls=true"))
	assert.Equal(t, "u@/g?parseTime=false", withParseTime("u@/g?parseTime=false"))
}

func TestSQLitePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "g.db")
	db, err := NewSQLite(config.DatabaseConfig{Path: path})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())
	assert.Equal(t, "sqlite", db.Driver())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening database")
}
