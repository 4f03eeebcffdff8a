package pgengine

import (
	"slices"
)

// Table describes the table one Storage serves.
type Table struct {
	Name string

	// PrimaryKey holds the primary key column names in key order.
	PrimaryKey []string

	// Columns optionally declares the selectable columns. When empty, queries select * and
	// ordering accepts any column name.
	Columns []string
}

// Validate checks that the table is usable.
func (t Table) Validate() error {
	if t.Name == "" {
		return ErrEmptyTableName
	}

	if len(t.PrimaryKey) == 0 {
		return ErrEmptyPrimaryKey
	}

	return nil
}

func (t Table) hasColumn(column string) bool {
	return len(t.Columns) == 0 || slices.Contains(t.Columns, column)
}
