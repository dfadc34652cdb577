package schema

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// Column describes a single column of an introspected table.
type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPrimary  bool
}

// ForeignKey records a column-level reference to another table.
type ForeignKey struct {
	Column       string
	TargetTable  string
	TargetColumn string
}

// Descriptor is the model-facing description of one table: its columns in
// ordinal order plus any foreign keys, rendered as compact prompt text.
type Descriptor struct {
	Table       string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// Entity returns the singular noun a table most likely stores, used when
// describing the table in prose ("tasks" -> "task").
func (d Descriptor) Entity() string {
	return inflection.Singular(d.Table)
}

// ColumnNames returns the column names in ordinal order.
func (d Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table carries the named column.
func (d Descriptor) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// PromptText renders the descriptor in the compact form fed to the model:
//
//	tasks (each row is one task):
//	  id uuid PRIMARY KEY
//	  title text
//	  project_id uuid REFERENCES projects(id)
func (d Descriptor) PromptText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (each row is one %s):\n", d.Table, d.Entity())

	fks := make(map[string]ForeignKey, len(d.ForeignKeys))
	for _, fk := range d.ForeignKeys {
		fks[fk.Column] = fk
	}

	for _, c := range d.Columns {
		fmt.Fprintf(&b, "  %s %s", c.Name, c.DataType)
		if c.IsPrimary {
			b.WriteString(" PRIMARY KEY")
		}
		if fk, ok := fks[c.Name]; ok {
			fmt.Fprintf(&b, " REFERENCES %s(%s)", fk.TargetTable, fk.TargetColumn)
		}
		if !c.IsNullable && !c.IsPrimary {
			b.WriteString(" NOT NULL")
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// PromptText renders every descriptor, blank-line separated, in catalog order.
func PromptText(descriptors []Descriptor) string {
	parts := make([]string, len(descriptors))
	for i, d := range descriptors {
		parts[i] = d.PromptText()
	}
	return strings.Join(parts, "\n")
}
