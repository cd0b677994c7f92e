package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/arkilian/empbench/pkg/types"
)

// Dialect names.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// Dialect renders the engine-specific SQL used by the repository and the
// index manager. Identifiers passed in are already validated.
type Dialect interface {
	// Name is one of DialectSQLite, DialectPostgres, DialectMySQL
	Name() string

	// DriverName is the database/sql driver registered for this dialect
	DriverName() string

	// DSN decorates a user DSN with the connection parameters empbench needs
	DSN(dsn string) string

	// Placeholder returns the bind placeholder for the n-th (1-based) parameter
	Placeholder(n int) string

	// MaxBindParams is the number of bind parameters one statement may carry
	MaxBindParams() int

	// UsesReturning reports whether inserted ids come back through RETURNING
	// instead of sql.Result.LastInsertId
	UsesReturning() bool

	// CreateTableSQL returns idempotent statements creating the table
	CreateTableSQL(table string, columns []types.ColumnDef) []string

	// CreateIndexSQL returns the statement creating idx on table
	CreateIndexSQL(table string, idx types.IndexDef) string

	// DropIndexSQL returns the statement dropping the named index
	DropIndexSQL(table, name string) string

	// ListIndexesSQL returns a query yielding one index name per row for the
	// secondary indexes of table
	ListIndexesSQL(table string) (string, []interface{})

	// PrefixMatchSQL returns a case-sensitive starts-with condition on column
	// that a plain B-tree index on the column can serve
	PrefixMatchSQL(column, placeholder string) string

	// PrefixPattern converts a literal prefix into the bind value for
	// PrefixMatchSQL
	PrefixPattern(prefix string) string

	// DateValue converts a calendar date into a bind value for a DATE column
	DateValue(t time.Time) interface{}
}

// Placeholders returns n comma-separated placeholders starting at offset+1.
func Placeholders(d Dialect, offset, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(offset + i + 1)
	}
	return strings.Join(parts, ", ")
}

func enumList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

func indexColumns(idx types.IndexDef) string {
	return strings.Join(idx.Columns, ", ")
}

// likePattern escapes LIKE metacharacters with '!' so the prefix is matched literally.
func likePattern(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}

func uniqueKeyword(idx types.IndexDef) string {
	if idx.Unique {
		return "UNIQUE "
	}
	return ""
}

func notNull(col types.ColumnDef) string {
	if col.Nullable {
		return ""
	}
	return " NOT NULL"
}

// sqliteDialect serves both mattn/go-sqlite3 ("sqlite3") and modernc.org/sqlite ("sqlite").
type sqliteDialect struct {
	driver string
}

func (d sqliteDialect) Name() string       { return DialectSQLite }
func (d sqliteDialect) DriverName() string { return d.driver }

func (d sqliteDialect) DSN(dsn string) string {
	if d.driver == "sqlite" {
		return appendParams(dsn, "_pragma=busy_timeout(5000)", "_pragma=journal_mode(WAL)")
	}
	return appendParams(dsn, "_journal_mode=WAL", "_busy_timeout=5000")
}

func (d sqliteDialect) Placeholder(int) string { return "?" }
func (d sqliteDialect) MaxBindParams() int     { return 32766 }
func (d sqliteDialect) UsesReturning() bool    { return false }

func (d sqliteDialect) CreateTableSQL(table string, columns []types.ColumnDef) []string {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		switch {
		case col.PrimaryKey:
			defs = append(defs, col.Name+" INTEGER PRIMARY KEY AUTOINCREMENT")
		case col.Type == types.TypeEnum:
			defs = append(defs, fmt.Sprintf("%s TEXT%s CHECK (%s IN (%s))", col.Name, notNull(col), col.Name, enumList(col.Values)))
		default:
			defs = append(defs, col.Name+" "+col.Type+notNull(col))
		}
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table, strings.Join(defs, ",\n    "))}
}

func (d sqliteDialect) CreateIndexSQL(table string, idx types.IndexDef) string {
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)", uniqueKeyword(idx), idx.Name, table, indexColumns(idx))
}

func (d sqliteDialect) DropIndexSQL(_, name string) string {
	return "DROP INDEX IF EXISTS " + name
}

func (d sqliteDialect) ListIndexesSQL(table string) (string, []interface{}) {
	// sql IS NULL excludes the automatic indexes backing constraints
	return `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name`,
		[]interface{}{table}
}

// SQLite's LIKE is case-insensitive and skips BINARY-collated indexes; GLOB
// is case-sensitive and is rewritten into an index range scan.
func (d sqliteDialect) PrefixMatchSQL(column, placeholder string) string {
	return column + " GLOB " + placeholder
}

func (d sqliteDialect) PrefixPattern(prefix string) string {
	r := strings.NewReplacer("[", "[[]", "*", "[*]", "?", "[?]")
	return r.Replace(prefix) + "*"
}

// Dates are stored as YYYY-MM-DD text.
func (d sqliteDialect) DateValue(t time.Time) interface{} {
	return types.FormatDate(t)
}

// postgresDialect serves jackc/pgx through its database/sql adapter.
type postgresDialect struct{}

func (postgresDialect) Name() string             { return DialectPostgres }
func (postgresDialect) DriverName() string       { return "pgx" }
func (postgresDialect) DSN(dsn string) string    { return dsn }
func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) MaxBindParams() int       { return 65535 }
func (postgresDialect) UsesReturning() bool      { return true }

func (postgresDialect) CreateTableSQL(table string, columns []types.ColumnDef) []string {
	var stmts []string
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		switch {
		case col.PrimaryKey:
			defs = append(defs, col.Name+" BIGSERIAL PRIMARY KEY")
		case col.Type == types.TypeEnum:
			// The enum type is named after the column, as SQLAlchemy's Enum(name=...) does
			stmts = append(stmts, fmt.Sprintf(`DO $$ BEGIN
    CREATE TYPE %s AS ENUM (%s);
EXCEPTION
    WHEN duplicate_object THEN NULL;
END $$`, col.Name, enumList(col.Values)))
			defs = append(defs, col.Name+" "+col.Name+notNull(col))
		case col.Type == types.TypeText:
			defs = append(defs, col.Name+" VARCHAR"+notNull(col))
		default:
			defs = append(defs, col.Name+" "+col.Type+notNull(col))
		}
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table, strings.Join(defs, ",\n    ")))
	return stmts
}

// Prefix indexes use text_pattern_ops so LIKE 'x%' can use them under any
// database collation.
func (postgresDialect) CreateIndexSQL(table string, idx types.IndexDef) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = c
		if idx.Prefix {
			cols[i] += " text_pattern_ops"
		}
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", uniqueKeyword(idx), idx.Name, table, strings.Join(cols, ", "))
}

func (postgresDialect) DropIndexSQL(_, name string) string {
	return "DROP INDEX IF EXISTS " + name
}

func (postgresDialect) ListIndexesSQL(table string) (string, []interface{}) {
	return `SELECT indexname FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1 AND indexname <> $2
		ORDER BY indexname`,
		[]interface{}{table, table + "_pkey"}
}

func (postgresDialect) PrefixMatchSQL(column, placeholder string) string {
	return column + " LIKE " + placeholder + " ESCAPE '!'"
}

func (postgresDialect) PrefixPattern(prefix string) string { return likePattern(prefix) }

func (postgresDialect) DateValue(t time.Time) interface{} {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// mysqlDialect serves go-sql-driver/mysql. MySQL has no IF [NOT] EXISTS for
// indexes, so the index manager checks ListIndexesSQL before issuing DDL.
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return DialectMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	return appendParams(dsn, "parseTime=true")
}

func (mysqlDialect) Placeholder(int) string { return "?" }
func (mysqlDialect) MaxBindParams() int     { return 65535 }
func (mysqlDialect) UsesReturning() bool    { return false }

func (mysqlDialect) CreateTableSQL(table string, columns []types.ColumnDef) []string {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		switch {
		case col.PrimaryKey:
			defs = append(defs, col.Name+" BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
		case col.Type == types.TypeEnum:
			defs = append(defs, fmt.Sprintf("%s ENUM(%s)%s", col.Name, enumList(col.Values), notNull(col)))
		case col.Type == types.TypeText:
			// VARCHAR so the column can carry a plain secondary index; binary
			// collation keeps LIKE case-sensitive
			defs = append(defs, col.Name+" VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"+notNull(col))
		default:
			defs = append(defs, col.Name+" "+col.Type+notNull(col))
		}
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table, strings.Join(defs, ",\n    "))}
}

func (mysqlDialect) CreateIndexSQL(table string, idx types.IndexDef) string {
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueKeyword(idx), idx.Name, table, indexColumns(idx))
}

func (mysqlDialect) DropIndexSQL(table, name string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", name, table)
}

func (mysqlDialect) ListIndexesSQL(table string) (string, []interface{}) {
	return `SELECT DISTINCT index_name FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name <> 'PRIMARY'
		ORDER BY index_name`,
		[]interface{}{table}
}

// Text columns are declared utf8mb4_bin, so LIKE is case-sensitive and still
// served by the index (LIKE BINARY would skip it).
func (mysqlDialect) PrefixMatchSQL(column, placeholder string) string {
	return column + " LIKE " + placeholder + " ESCAPE '!'"
}

func (mysqlDialect) PrefixPattern(prefix string) string { return likePattern(prefix) }

func (mysqlDialect) DateValue(t time.Time) interface{} {
	return types.FormatDate(t)
}
