// Package schema declares how the employee record maps onto a relational
// table. A Mapping is built once at startup and handed to the repository and
// the index manager; there is no package-level registry.
package schema

import (
	"fmt"
	"regexp"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether s can be interpolated into DDL unquoted.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Mapping binds the Employee record to a table.
type Mapping struct {
	Table string

	// Column names
	ID        string
	FullName  string
	BirthDate string
	Gender    string

	// Columns in table order, including ID
	Columns []types.ColumnDef

	// Indexes are the secondary indexes the benchmark creates
	Indexes []types.IndexDef
}

// EmployeeMapping returns the mapping of the employees table.
func EmployeeMapping() *Mapping {
	genders := make([]string, 0, 2)
	for _, g := range types.Genders() {
		genders = append(genders, string(g))
	}

	return &Mapping{
		Table:     "employees",
		ID:        "id",
		FullName:  "full_name",
		BirthDate: "birth_date",
		Gender:    "gender",
		Columns: []types.ColumnDef{
			{Name: "id", Type: types.TypeInteger, PrimaryKey: true},
			{Name: "full_name", Type: types.TypeText},
			{Name: "birth_date", Type: types.TypeDate},
			{Name: "gender", Type: types.TypeEnum, Values: genders},
		},
		Indexes: []types.IndexDef{
			{Name: "idx_gender", Columns: []string{"gender"}},
			{Name: "idx_full_name", Columns: []string{"full_name"}, Prefix: true},
		},
	}
}

// Validate checks identifiers and that every index references mapped columns.
func (m *Mapping) Validate() error {
	if !ValidIdentifier(m.Table) {
		return invalid(fmt.Sprintf("invalid table name %q", m.Table))
	}
	for _, name := range []string{m.ID, m.FullName, m.BirthDate, m.Gender} {
		if !m.HasColumn(name) {
			return invalid(fmt.Sprintf("column %q is not declared in table %s", name, m.Table))
		}
	}
	for _, col := range m.Columns {
		if !ValidIdentifier(col.Name) {
			return invalid(fmt.Sprintf("invalid column name %q", col.Name))
		}
		if col.Type == types.TypeEnum && len(col.Values) == 0 {
			return invalid(fmt.Sprintf("enum column %q has no values", col.Name))
		}
	}
	for _, idx := range m.Indexes {
		if !ValidIdentifier(idx.Name) {
			return invalid(fmt.Sprintf("invalid index name %q", idx.Name))
		}
		if len(idx.Columns) == 0 {
			return invalid(fmt.Sprintf("index %q has no columns", idx.Name))
		}
		for _, c := range idx.Columns {
			if !m.HasColumn(c) {
				return invalid(fmt.Sprintf("index %q references unknown column %q", idx.Name, c))
			}
		}
	}
	return nil
}

// HasColumn reports whether name is a column of the table.
func (m *Mapping) HasColumn(name string) bool {
	for _, col := range m.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// InsertColumns are the columns written on insert, in bind order.
func (m *Mapping) InsertColumns() []string {
	return []string{m.FullName, m.BirthDate, m.Gender}
}

// SelectColumns are the columns read back into an Employee, in scan order.
func (m *Mapping) SelectColumns() []string {
	return []string{m.ID, m.FullName, m.BirthDate, m.Gender}
}

// Index returns the declared index with the given name.
func (m *Mapping) Index(name string) (types.IndexDef, bool) {
	for _, idx := range m.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return types.IndexDef{}, false
}

// CreateTableSQL renders the idempotent DDL for the dialect.
func (m *Mapping) CreateTableSQL(d storage.Dialect) []string {
	return d.CreateTableSQL(m.Table, m.Columns)
}

func invalid(msg string) error {
	return apperrors.NewSchemaError(apperrors.CodeInvalidMapping, "mapping", msg, nil)
}
