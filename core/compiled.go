package core

// Compiled is a statement produced by a statement compiler, ready for
// execution. The text uses named parameters (:name); the execution layer
// converts them to the dialect's paramstyle before handing the statement to
// the driver.
type Compiled struct {
	// Text is the final SQL text in named-parameter form.
	Text string

	// BindNames lists bound-parameter names in positional order.
	BindNames []string

	// BindTypes maps each bound-parameter name to its generic type, used
	// to post-process raw driver values (out parameters in particular).
	BindTypes map[string]Type

	// OutParams names the bound parameters flagged as output parameters,
	// in the order their values should be extracted.
	OutParams []string

	IsInsert  bool
	IsUpdate  bool
	IsTextual bool

	// ImplicitReturning requests that server-generated values be returned
	// inline by the statement rather than fetched afterward.
	ImplicitReturning bool

	// Prefetch lists columns whose client-side defaults fire before
	// execution; Postfetch lists columns whose values the database
	// produces and which must be read back afterward.
	Prefetch  []*Column
	Postfetch []*Column

	// AutoincColumn, if set, is the primary-key column populated from the
	// driver's last-insert id when the backend has no implicit returning.
	AutoincColumn *Column

	// Columns lists the result columns a row-returning statement selects,
	// in positional order. The result layer uses it to resolve column
	// objects to row slots.
	Columns []*Column
}

// Textual wraps raw statement text in a Compiled value with no bind
// metadata.
func Textual(text string) *Compiled {
	return &Compiled{Text: text, IsTextual: true}
}

// TypeOf returns the generic bind type for name, or NullType if the
// compiler supplied none.
func (c *Compiled) TypeOf(name string) Type {
	if c.BindTypes == nil {
		return Type{}
	}
	return c.BindTypes[name]
}

// HasOutParams reports whether any bound parameter is an output parameter.
func (c *Compiled) HasOutParams() bool { return len(c.OutParams) > 0 }
