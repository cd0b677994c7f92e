// Package storage opens the relational store behind empbench and describes
// the SQL dialect spoken by each supported engine.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/arkilian/empbench/internal/errors"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Options configures Open.
type Options struct {
	// Driver is one of: sqlite3, sqlite, pgx, postgres, mysql
	Driver string

	// DSN is the driver-specific data source name
	DSN string

	// MaxOpenConns caps the connection pool. SQLite ignores it and keeps a
	// single writer connection.
	MaxOpenConns int
}

// Open opens and pings the store. The returned handle is owned by the caller.
func Open(ctx context.Context, opts Options) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(opts.DSN))
	if err != nil {
		return nil, nil, apperrors.NewStoreError(apperrors.CodeConnectFailed, "open",
			fmt.Sprintf("failed to open %s store", opts.Driver), err)
	}

	if dialect.Name() == DialectSQLite {
		db.SetMaxOpenConns(1) // Single writer
		db.SetMaxIdleConns(1)
	} else {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, apperrors.NewStoreError(apperrors.CodeConnectFailed, "open",
			fmt.Sprintf("failed to reach %s store", opts.Driver), err)
	}

	return db, dialect, nil
}

// DialectFor returns the dialect for a configured driver key.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "":
		return sqliteDialect{driver: "sqlite3"}, nil
	case "sqlite":
		return sqliteDialect{driver: "sqlite"}, nil
	case "pgx", "postgres", "postgresql":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported store driver %q", driver), nil)
	}
}

// appendParams appends query parameters to a DSN that may already carry some.
func appendParams(dsn string, params ...string) string {
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
