package core

// Catalog introspection record shapes, returned by a dialect's metadata
// methods to reflection callers.

// ColumnInfo describes one column of a reflected table.
type ColumnInfo struct {
	Name          string
	Type          Type
	Nullable      bool
	Default       string
	Autoincrement bool
	Sequence      *SequenceInfo
}

// SequenceInfo describes the sequence feeding a column, on backends that
// implement autoincrement via sequences.
type SequenceInfo struct {
	Name      string
	Start     int64
	Increment int64
}

// PrimaryKeyInfo describes a table's primary-key constraint.
type PrimaryKeyInfo struct {
	Name               string
	ConstrainedColumns []string
}

// ForeignKeyInfo describes one foreign-key constraint.
type ForeignKeyInfo struct {
	Name               string
	ConstrainedColumns []string
	ReferredSchema     string
	ReferredTable      string
	ReferredColumns    []string
}

// IndexInfo describes one index.
type IndexInfo struct {
	Name        string
	ColumnNames []string
	Unique      bool
}

// UniqueConstraintInfo describes one unique constraint.
type UniqueConstraintInfo struct {
	Name        string
	ColumnNames []string
}

// CheckConstraintInfo describes one check constraint.
type CheckConstraintInfo struct {
	Name    string
	SQLText string
}

// TableComment carries the comment attached to a table.
type TableComment struct {
	Text string
}
