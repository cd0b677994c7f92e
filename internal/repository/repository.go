// Package repository persists employee records and runs the predicate
// queries measured by the benchmark.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/internal/logging"
	"github.com/arkilian/empbench/internal/schema"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
	"go.uber.org/zap"
)

// DefaultChunkSize is the number of rows carried by one multi-row INSERT.
const DefaultChunkSize = 1000

// Repository owns one store handle. It is not safe for concurrent use;
// concurrent callers need their own Repository and handle.
type Repository struct {
	db        *sql.DB
	dialect   storage.Dialect
	mapping   *schema.Mapping
	chunkSize int
	logger    *zap.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithChunkSize sets the rows per INSERT statement used by BulkInsert.
func WithChunkSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logging.OrNop(l)
	}
}

// New binds a repository to an open store and a validated mapping.
func New(db *sql.DB, dialect storage.Dialect, mapping *schema.Mapping, opts ...Option) (*Repository, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	r := &Repository{
		db:        db,
		dialect:   dialect,
		mapping:   mapping,
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Each row binds one parameter per insert column
	if limit := dialect.MaxBindParams() / len(mapping.InsertColumns()); r.chunkSize > limit {
		r.chunkSize = limit
	}
	return r, nil
}

// Mapping returns the table mapping the repository was built with.
func (r *Repository) Mapping() *schema.Mapping {
	return r.mapping
}

// ChunkSize returns the effective rows per INSERT statement.
func (r *Repository) ChunkSize() int {
	return r.chunkSize
}

// CreateSchema creates the employees table. It is idempotent.
func (r *Repository) CreateSchema(ctx context.Context) error {
	for _, stmt := range r.mapping.CreateTableSQL(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewSchemaError(apperrors.CodeSchemaCreateFailed, "create_schema",
				fmt.Sprintf("failed to create table %s", r.mapping.Table), err)
		}
	}
	r.logger.Debug("schema ready", zap.String("table", r.mapping.Table), zap.String("dialect", r.dialect.Name()))
	return nil
}

// Add validates and inserts a single record in its own transaction and
// returns the id assigned by the store.
func (r *Repository) Add(ctx context.Context, fullName, birthDate, gender string) (int64, error) {
	row, err := validate("add", -1, types.Tuple{FullName: fullName, BirthDate: birthDate, Gender: gender})
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeInsertFailed, "add", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := r.insertSQL(1)
	args := []interface{}{row.fullName, r.dialect.DateValue(row.birthDate), string(row.gender)}

	var id int64
	if r.dialect.UsesReturning() {
		err = tx.QueryRowContext(ctx, query+" RETURNING "+r.mapping.ID, args...).Scan(&id)
	} else {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, query, args...); err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeInsertFailed, "add",
			fmt.Sprintf("failed to insert %q", fullName), err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeCommitFailed, "add", "failed to commit", err)
	}

	r.logger.Debug("employee added", zap.Int64("id", id), zap.String("full_name", row.fullName))
	return id, nil
}

// BulkInsert persists batch in one transaction using multi-row INSERT
// statements of ChunkSize rows, so the number of round-trips is
// len(batch)/ChunkSize rather than len(batch).
//
// Every tuple is validated before anything is written: one malformed tuple
// aborts the whole batch. A store failure rolls the transaction back and the
// error reports how many rows had been sent before it. Once issued the
// insert is not cancellable; ctx only contributes its values.
func (r *Repository) BulkInsert(ctx context.Context, batch types.Batch) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	rows := make([]row, len(batch))
	for i, t := range batch {
		parsed, err := validate("bulk_insert", i, t)
		if err != nil {
			return 0, err
		}
		rows[i] = parsed
	}

	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeInsertFailed, "bulk_insert", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	fullRows := min(r.chunkSize, len(rows))
	fullStmt, err := tx.PrepareContext(ctx, r.insertSQL(fullRows))
	if err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeInsertFailed, "bulk_insert", "failed to prepare insert statement", err).
			WithDetails(map[string]interface{}{"rows_sent": int64(0), "batch_size": len(rows)})
	}
	defer fullStmt.Close()

	width := len(r.mapping.InsertColumns())
	args := make([]interface{}, 0, r.chunkSize*width)
	var written int64
	chunks := 0

	for lo := 0; lo < len(rows); lo += r.chunkSize {
		hi := min(lo+r.chunkSize, len(rows))

		args = args[:0]
		for _, rw := range rows[lo:hi] {
			args = append(args, rw.fullName, r.dialect.DateValue(rw.birthDate), string(rw.gender))
		}

		if hi-lo == fullRows {
			_, err = fullStmt.ExecContext(ctx, args...)
		} else {
			// Trailing partial chunk
			_, err = tx.ExecContext(ctx, r.insertSQL(hi-lo), args...)
		}
		if err != nil {
			return 0, apperrors.NewStoreError(apperrors.CodeInsertFailed, "bulk_insert",
				fmt.Sprintf("failed to insert tuples %d..%d after %d rows; batch rolled back", lo, hi-1, written), err).
				WithDetails(map[string]interface{}{"rows_sent": written, "batch_size": len(rows)})
		}

		written += int64(hi - lo)
		chunks++
		r.logger.Debug("chunk inserted", zap.Int("chunk", chunks), zap.Int64("rows", written))
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeCommitFailed, "bulk_insert",
			fmt.Sprintf("failed to commit %d rows", written), err)
	}

	r.logger.Info("bulk insert complete",
		zap.Int64("rows", written),
		zap.Int("statements", chunks),
		zap.Duration("elapsed", time.Since(start)))
	return written, nil
}

// QueryByPredicate returns every record whose full_name starts with
// namePrefix and whose gender equals gender. The result is fully
// materialized; its order is unspecified.
func (r *Repository) QueryByPredicate(ctx context.Context, namePrefix, gender string) ([]types.Employee, error) {
	g, err := types.ParseGender(gender)
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidGender, "query_by_predicate",
			fmt.Sprintf("gender %q must be Male or Female", gender), err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s AND %s = %s",
		strings.Join(r.mapping.SelectColumns(), ", "),
		r.mapping.Table,
		r.dialect.PrefixMatchSQL(r.mapping.FullName, r.dialect.Placeholder(1)),
		r.mapping.Gender, r.dialect.Placeholder(2))

	return r.query(ctx, "query_by_predicate", query, r.dialect.PrefixPattern(namePrefix), string(g))
}

// ListAllOrdered returns every record ordered by full_name ascending.
func (r *Repository) ListAllOrdered(ctx context.Context) ([]types.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC, %s ASC",
		strings.Join(r.mapping.SelectColumns(), ", "),
		r.mapping.Table, r.mapping.FullName, r.mapping.ID)
	return r.query(ctx, "list_all_ordered", query)
}

// Count returns the number of persisted records.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.mapping.Table).Scan(&n); err != nil {
		return 0, apperrors.NewStoreError(apperrors.CodeQueryFailed, "count", "failed to count records", err)
	}
	return n, nil
}

func (r *Repository) query(ctx context.Context, op, query string, args ...interface{}) ([]types.Employee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeQueryFailed, op, "query failed", err)
	}
	defer rows.Close()

	result := make([]types.Employee, 0, 64)
	for rows.Next() {
		var (
			e      types.Employee
			gender string
		)
		if err := rows.Scan(&e.ID, &e.FullName, dateScanner{&e.BirthDate}, &gender); err != nil {
			return nil, apperrors.NewStoreError(apperrors.CodeQueryFailed, op, "failed to scan record", err)
		}
		e.Gender = types.Gender(gender)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeQueryFailed, op, "error iterating records", err)
	}
	return result, nil
}

// insertSQL renders an INSERT carrying n rows.
func (r *Repository) insertSQL(n int) string {
	cols := r.mapping.InsertColumns()
	var sb strings.Builder
	sb.Grow(64 + n*(len(cols)*4+4))
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", r.mapping.Table, strings.Join(cols, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		sb.WriteString(storage.Placeholders(r.dialect, i*len(cols), len(cols)))
		sb.WriteByte(')')
	}
	return sb.String()
}
