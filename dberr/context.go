package dberr

// Context carries the in-flight state of an error condition through the
// handler chain. Fields may be nil when the failure happened before the
// corresponding resource existed (e.g. a connect failure has no cursor).
type Context struct {
	// Connection and Engine identify where the error occurred. They are
	// opaque here; the engine package populates them with its own types.
	Connection any
	Engine     any

	// Cursor is the raw driver cursor in use, if any.
	Cursor any

	// ExecutionContext is the execution context in progress, if the error
	// was raised during statement execution.
	ExecutionContext any

	// Statement and Params were emitted to the driver, when known.
	Statement string
	Params    []any

	// Original is the raw driver error as caught.
	Original error

	// Wrapped is the classified error that will be raised unless a
	// handler substitutes a replacement.
	Wrapped *Error

	// Chained is the replacement returned by an earlier handler in the
	// chain, if any.
	Chained error
}

// Decision is the outcome folded through the handler chain. Handlers
// receive the decision so far and return a possibly modified copy; the
// final decision is authoritative.
type Decision struct {
	// IsDisconnect marks the error as a dead-connection condition,
	// triggering invalidation.
	IsDisconnect bool

	// InvalidatePool, when a disconnect is in effect, invalidates every
	// pooled connection rather than just the offending one. Defaults to
	// true.
	InvalidatePool bool

	// Replacement, when non-nil, propagates to the caller in place of the
	// wrapped error.
	Replacement error
}

// Handler inspects an error condition and returns the (possibly modified)
// decision. Handlers run in registration order; each sees the previous
// handler's decision.
type Handler func(ctx *Context, d Decision) Decision

// Fold evaluates the handler chain over an initial decision. The context's
// Chained field tracks replacement errors so later handlers can see what an
// earlier one substituted.
func Fold(handlers []Handler, ctx *Context, initial Decision) Decision {
	d := initial
	for _, h := range handlers {
		d = h(ctx, d)
		if d.Replacement != nil {
			ctx.Chained = d.Replacement
		}
	}
	return d
}
