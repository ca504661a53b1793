package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

var mysqlDialect = dialect{
	name: "mysql",
	bootstrap: `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
		filename   VARCHAR(255) NOT NULL UNIQUE,
		applied_at VARCHAR(64)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	split: splitMySQL,
	upsertSuffix: func(conflictCols, updateCols []string) string {
		if len(updateCols) == 0 {
			// No-op assignment keeps the statement valid when every column is a key.
			return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", conflictCols[0], conflictCols[0])
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(updateCols, ", ")
	},
	excluded: func(col string) string { return "VALUES(" + col + ")" },
}

// MySQLDB implements DB using MySQL via go-sql-driver/mysql.
type MySQLDB struct {
	*sqlDB
}

// NewMySQL opens a MySQL connection using cfg.DSN.
func NewMySQL(cfg config.DatabaseConfig) (*MySQLDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required when driver is mysql")
	}

	db, err := sql.Open("mysql", withParseTime(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	m := &MySQLDB{sqlDB: &sqlDB{db: db, d: mysqlDialect}}
	if err := m.Ping(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return m, nil
}

// withParseTime appends parseTime=true so DATETIME columns scan into time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// splitMySQL translates a migration to MySQL and splits it into statements;
// the driver rejects multi-statement Exec by default.
func splitMySQL(src string) []string {
	var out []string
	for _, stmt := range strings.Split(mysqlAdapt(src), ";") {
		lines := strings.Split(stmt, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if !strings.HasPrefix(strings.TrimSpace(l), "--") {
				kept = append(kept, l)
			}
		}
		if stmt = strings.TrimSpace(strings.Join(kept, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// mysqlAdapt converts SQLite-specific SQL fragments to MySQL equivalents.
func mysqlAdapt(sql string) string {
	sql = strings.ReplaceAll(sql, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	sql = strings.ReplaceAll(sql, "CREATE INDEX IF NOT EXISTS", "CREATE INDEX")
	sql = strings.ReplaceAll(sql, " REAL ", " DOUBLE ")
	return sql
}
