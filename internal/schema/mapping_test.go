package schema

import (
	"testing"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
)

func TestEmployeeMapping_Valid(t *testing.T) {
	m := EmployeeMapping()
	if err := m.Validate(); err != nil {
		t.Fatalf("employee mapping should be valid: %v", err)
	}
	if m.Table != "employees" {
		t.Errorf("expected table employees, got %s", m.Table)
	}
	if len(m.Indexes) != 2 {
		t.Errorf("expected 2 benchmark indexes, got %d", len(m.Indexes))
	}
}

func TestMapping_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Mapping)
	}{
		{"bad table", func(m *Mapping) { m.Table = "employees; DROP TABLE x" }},
		{"unknown mapped column", func(m *Mapping) { m.Gender = "sex" }},
		{"bad index name", func(m *Mapping) { m.Indexes[0].Name = "idx-gender" }},
		{"index on unknown column", func(m *Mapping) { m.Indexes[1].Columns = []string{"salary"} }},
		{"index without columns", func(m *Mapping) { m.Indexes[1].Columns = nil }},
		{"enum without values", func(m *Mapping) { m.Columns[3].Values = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := EmployeeMapping()
			tt.mutate(m)
			err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperrors.IsSchema(err) {
				t.Errorf("expected SchemaError, got %v", err)
			}
		})
	}
}

func TestMapping_Columns(t *testing.T) {
	m := EmployeeMapping()
	if got := m.InsertColumns(); len(got) != 3 || got[0] != "full_name" || got[2] != "gender" {
		t.Errorf("unexpected insert columns %v", got)
	}
	if got := m.SelectColumns(); len(got) != 4 || got[0] != "id" {
		t.Errorf("unexpected select columns %v", got)
	}
	if !m.HasColumn("birth_date") || m.HasColumn("salary") {
		t.Error("HasColumn mismatch")
	}
}

func TestMapping_Index(t *testing.T) {
	m := EmployeeMapping()
	idx, ok := m.Index("idx_full_name")
	if !ok || idx.Columns[0] != "full_name" {
		t.Errorf("unexpected index lookup: %+v %v", idx, ok)
	}
	if _, ok := m.Index("idx_missing"); ok {
		t.Error("missing index should not be found")
	}
}

func TestMapping_CreateTableSQL(t *testing.T) {
	m := EmployeeMapping()
	d, err := storage.DialectFor("sqlite3")
	if err != nil {
		t.Fatal(err)
	}
	stmts := m.CreateTableSQL(d)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	want := "CREATE TABLE IF NOT EXISTS employees (\n" +
		"    id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
		"    full_name TEXT NOT NULL,\n" +
		"    birth_date DATE NOT NULL,\n" +
		"    gender TEXT NOT NULL CHECK (gender IN ('Male', 'Female'))\n" +
		")"
	if stmts[0] != want {
		t.Errorf("unexpected DDL:\n%s\nwant:\n%s", stmts[0], want)
	}
}

func TestValidIdentifier(t *testing.T) {
	for _, s := range []string{"employees", "_x", "idx_full_name2"} {
		if !ValidIdentifier(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "1abc", "a b", "a;b", "a-b", string(types.Male) + "'"} {
		if ValidIdentifier(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
