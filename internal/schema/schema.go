package schema

import "slices"

// ColumnSpec describes one column. The same shape is used for the column as it
// currently exists and for the shape it should converge to.
type ColumnSpec struct {
	Name         string `json:"name" yaml:"name"`
	DataType     string `json:"type" yaml:"type"`
	Size         Size   `json:"size,omitempty" yaml:"size,omitempty"`
	Nullable     Flag   `json:"is_null" yaml:"is_null"`
	DefaultValue string `json:"default_value" yaml:"default_value,omitempty"`
	Unique       Flag   `json:"is_unique" yaml:"is_unique"`
	Primary      Flag   `json:"is_primary" yaml:"is_primary"`
}

// TableColumn is a ColumnSpec used in a table definition, where a column may
// also ask for an auto-increment identity.
type TableColumn struct {
	ColumnSpec `yaml:",inline"`
	Increment  Flag `json:"increment,omitempty" yaml:"increment,omitempty"`
	Identity   Flag `json:"is_identity,omitempty" yaml:"is_identity,omitempty"`
}

// ConstraintKind is one of the column-level constraints managed independently
// by the alteration planner.
type ConstraintKind string

const (
	KindDefault    ConstraintKind = "default"
	KindUnique     ConstraintKind = "unique"
	KindPrimaryKey ConstraintKind = "primary_key"
)

// ConstraintKinds lists every kind in planning order.
var ConstraintKinds = []ConstraintKind{KindDefault, KindUnique, KindPrimaryKey}

// Prefix returns the naming-convention prefix for the kind.
func (k ConstraintKind) Prefix() string {
	switch k {
	case KindDefault:
		return "DF"
	case KindUnique:
		return "UQ"
	case KindPrimaryKey:
		return "PK"
	default:
		return ""
	}
}

// Valid reports whether k is a known kind.
func (k ConstraintKind) Valid() bool {
	return slices.Contains(ConstraintKinds, k)
}

// Changed reports whether this constraint kind differs between before and after.
func (k ConstraintKind) Changed(before, after ColumnSpec) bool {
	switch k {
	case KindDefault:
		return before.DefaultValue != after.DefaultValue
	case KindUnique:
		return before.Unique != after.Unique
	case KindPrimaryKey:
		return before.Primary != after.Primary
	default:
		return false
	}
}

// Wanted reports whether the column should carry this constraint in shape c.
func (k ConstraintKind) Wanted(c ColumnSpec) bool {
	switch k {
	case KindDefault:
		return c.DefaultValue != ""
	case KindUnique:
		return bool(c.Unique)
	case KindPrimaryKey:
		return bool(c.Primary)
	default:
		return false
	}
}

// ConstraintDescriptor identifies the constraint of a kind bound to a column.
// An empty Identifier means no such constraint currently exists.
type ConstraintDescriptor struct {
	Kind       ConstraintKind `json:"kind" yaml:"kind"`
	Table      string         `json:"table" yaml:"table"`
	Column     string         `json:"column" yaml:"column"`
	Identifier string         `json:"identifier,omitempty" yaml:"identifier,omitempty"`
}

// Exists reports whether the descriptor names a bound constraint.
func (d ConstraintDescriptor) Exists() bool {
	return d.Identifier != ""
}

// SameType reports whether two specs have identical type, size and nullability.
func SameType(a, b ColumnSpec) bool {
	return a.DataType == b.DataType && a.Size == b.Size && a.Nullable == b.Nullable
}

// TableCreateSpec is the desired definition of a new table.
type TableCreateSpec struct {
	Table   string        `json:"table" yaml:"table"`
	Columns []TableColumn `json:"columns" yaml:"columns"`
}

// PrimaryKey returns the names of the columns forming the table's primary key,
// in column order. Identity columns are always part of it.
func (s TableCreateSpec) PrimaryKey() []string {
	var pk []string
	for _, c := range s.Columns {
		if c.Primary || c.Increment {
			pk = append(pk, c.Name)
		}
	}
	return pk
}
