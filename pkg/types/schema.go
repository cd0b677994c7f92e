package types

// ColumnDef defines a single column of a mapped table.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name" yaml:"name"`

	// Type is the logical column type: INTEGER, TEXT, DATE, ENUM
	Type string `json:"type" yaml:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable" yaml:"nullable"`

	// PrimaryKey marks the surrogate identity column
	PrimaryKey bool `json:"primary_key" yaml:"primary_key"`

	// Values lists the allowed values of an ENUM column
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// IndexDef defines a secondary index on a mapped table.
type IndexDef struct {
	// Name is the index name
	Name string `json:"name" yaml:"name"`

	// Columns lists the columns included in the index
	Columns []string `json:"columns" yaml:"columns"`

	// Unique indicates whether the index enforces uniqueness
	Unique bool `json:"unique" yaml:"unique"`

	// Prefix marks an index that serves starts-with matching on text columns
	Prefix bool `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Logical column types.
const (
	TypeInteger = "INTEGER"
	TypeText    = "TEXT"
	TypeDate    = "DATE"
	TypeEnum    = "ENUM"
)
