// Package index creates and drops the secondary indexes of the employees
// table. The store owns the indexes; the manager keeps no state of its own.
package index

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/internal/logging"
	"github.com/arkilian/empbench/internal/schema"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
	"go.uber.org/zap"
)

// Manager issues index DDL against one store.
type Manager struct {
	db      *sql.DB
	dialect storage.Dialect
	mapping *schema.Mapping
	logger  *zap.Logger
}

// NewManager creates an index manager for the mapping's table.
func NewManager(db *sql.DB, dialect storage.Dialect, mapping *schema.Mapping, logger *zap.Logger) *Manager {
	return &Manager{
		db:      db,
		dialect: dialect,
		mapping: mapping,
		logger:  logging.OrNop(logger),
	}
}

// CreateIndex creates index name on column. Creating an index that already
// exists is a no-op. When the mapping declares an index of that name on the
// same column, its options (such as prefix matching support) are used.
func (m *Manager) CreateIndex(ctx context.Context, name, column string) error {
	if !schema.ValidIdentifier(name) {
		return apperrors.NewValidationError(apperrors.CodeInvalidIndexName, "create_index",
			fmt.Sprintf("invalid index name %q", name), nil)
	}
	if !m.mapping.HasColumn(column) {
		return apperrors.NewValidationError(apperrors.CodeInvalidColumn, "create_index",
			fmt.Sprintf("column %q is not a column of %s", column, m.mapping.Table), nil)
	}

	def := types.IndexDef{Name: name, Columns: []string{column}}
	if declared, ok := m.mapping.Index(name); ok && len(declared.Columns) == 1 && declared.Columns[0] == column {
		def = declared
	}
	return m.create(ctx, def)
}

// DropIndex drops index name. Dropping a missing index is not an error.
func (m *Manager) DropIndex(ctx context.Context, name string) error {
	if !schema.ValidIdentifier(name) {
		return apperrors.NewValidationError(apperrors.CodeInvalidIndexName, "drop_index",
			fmt.Sprintf("invalid index name %q", name), nil)
	}

	// MySQL has no DROP INDEX IF EXISTS
	if m.dialect.Name() == storage.DialectMySQL {
		exists, err := m.exists(ctx, "drop_index", name)
		if err != nil || !exists {
			return err
		}
	}

	if _, err := m.db.ExecContext(ctx, m.dialect.DropIndexSQL(m.mapping.Table, name)); err != nil {
		return apperrors.NewStoreError(apperrors.CodeIndexFailed, "drop_index",
			fmt.Sprintf("failed to drop index %s", name), err)
	}

	m.logger.Info("index dropped", zap.String("index", name), zap.String("table", m.mapping.Table))
	return nil
}

// ListIndexes returns the names of the secondary indexes currently on the
// table, sorted by name.
func (m *Manager) ListIndexes(ctx context.Context) ([]string, error) {
	query, args := m.dialect.ListIndexesSQL(m.mapping.Table)
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeIndexFailed, "list_indexes", "failed to list indexes", err)
	}
	defer rows.Close()

	names := make([]string, 0, len(m.mapping.Indexes))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewStoreError(apperrors.CodeIndexFailed, "list_indexes", "failed to scan index name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeIndexFailed, "list_indexes", "error iterating indexes", err)
	}
	return names, nil
}

// CreateAll creates every index in defs, stopping at the first failure.
func (m *Manager) CreateAll(ctx context.Context, defs []types.IndexDef) error {
	for _, def := range defs {
		if err := m.validateDef(def); err != nil {
			return err
		}
		if err := m.create(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// DropAll drops every index in defs, stopping at the first failure.
func (m *Manager) DropAll(ctx context.Context, defs []types.IndexDef) error {
	for _, def := range defs {
		if err := m.DropIndex(ctx, def.Name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) create(ctx context.Context, def types.IndexDef) error {
	if m.dialect.Name() == storage.DialectMySQL {
		exists, err := m.exists(ctx, "create_index", def.Name)
		if err != nil {
			return err
		}
		if exists {
			m.logger.Debug("index already present", zap.String("index", def.Name))
			return nil
		}
	}

	if _, err := m.db.ExecContext(ctx, m.dialect.CreateIndexSQL(m.mapping.Table, def)); err != nil {
		return apperrors.NewStoreError(apperrors.CodeIndexFailed, "create_index",
			fmt.Sprintf("failed to create index %s on %s(%v)", def.Name, m.mapping.Table, def.Columns), err)
	}

	m.logger.Info("index created",
		zap.String("index", def.Name),
		zap.String("table", m.mapping.Table),
		zap.Strings("columns", def.Columns))
	return nil
}

func (m *Manager) exists(ctx context.Context, op, name string) (bool, error) {
	names, err := m.ListIndexes(ctx)
	if err != nil {
		return false, apperrors.NewStoreError(apperrors.CodeIndexFailed, op,
			fmt.Sprintf("failed to look up index %s", name), err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) validateDef(def types.IndexDef) error {
	if !schema.ValidIdentifier(def.Name) {
		return apperrors.NewValidationError(apperrors.CodeInvalidIndexName, "create_index",
			fmt.Sprintf("invalid index name %q", def.Name), nil)
	}
	if len(def.Columns) == 0 {
		return apperrors.NewValidationError(apperrors.CodeInvalidColumn, "create_index",
			fmt.Sprintf("index %s has no columns", def.Name), nil)
	}
	for _, c := range def.Columns {
		if !m.mapping.HasColumn(c) {
			return apperrors.NewValidationError(apperrors.CodeInvalidColumn, "create_index",
				fmt.Sprintf("column %q is not a column of %s", c, m.mapping.Table), nil)
		}
	}
	return nil
}
