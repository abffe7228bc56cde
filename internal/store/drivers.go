package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"            // MySQL
	_ "github.com/lib/pq"                         // PostgreSQL
	_ "github.com/tursodatabase/go-libsql"        // libsql / SQLite
)

// Open connects to a ledger database by dialect name and runs migrations.
// Supported dialects: sqlite (libsql driver), postgres, mysql.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "libsql"
	case DialectPostgres:
		driver = "postgres"
	case DialectMySQL:
		driver = "mysql"
	default:
		return nil, fmt.Errorf("unknown store dialect %q (expected sqlite, postgres, or mysql)", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s store: %w", dialect, err)
	}

	s := NewSQL(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
