package core

import "fmt"

// Column describes a table column. Column pointers double as result-row
// keys: a row looked up by the column object, by its name, or by its
// positional index yields the same value.
type Column struct {
	Name  string
	Table string
	Type  Type

	// Default, when set, is a client-side default fired before execution.
	Default func() any

	// ServerDefault is the SQL text of a server-side default. Columns with
	// a server default are read back after execution (postfetch).
	ServerDefault string

	PrimaryKey    bool
	Autoincrement bool
	Nullable      bool
}

func (c *Column) String() string {
	if c.Table != "" {
		return fmt.Sprintf("%s.%s", c.Table, c.Name)
	}
	return c.Name
}

// HasClientDefault reports whether the column fires a client-side default.
func (c *Column) HasClientDefault() bool { return c.Default != nil }

// HasServerDefault reports whether the column's value is produced by the
// database and must be fetched back after execution.
func (c *Column) HasServerDefault() bool { return c.ServerDefault != "" }
