package engine

import (
	"errors"

	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/driver"
)

// handleError is the single funnel for every failure raised against this
// connection: it classifies the raw error through the dialect, annotates
// it with the in-flight statement, folds the engine's handler chain, and
// applies the disconnect consequences. Already-translated errors pass
// through untouched.
func (c *Connection) handleError(raw error, ec *ExecContext, cursor driver.Cursor) error {
	if raw == nil {
		return nil
	}
	var already *dberr.Error
	if errors.As(raw, &already) {
		return raw
	}

	if ec != nil {
		// The execution context gets first contact, before translation.
		raw = ec.HandleError(raw)
	}

	kind := c.engine.dialect.ClassifyError(raw)
	isDisconnect := c.engine.dialect.IsDisconnect(raw, c.raw, cursor)
	if isDisconnect {
		kind = dberr.KindDisconnect
	}

	wrapped := dberr.New(kind, raw)
	if ec != nil && ec.statement != "" {
		wrapped = wrapped.WithStatement(ec.statement, ec.args)
	}

	ctx := &dberr.Context{
		Connection: c,
		Engine:     c.engine,
		Cursor:     cursor,
		Original:   raw,
		Wrapped:    wrapped,
	}
	if ec != nil {
		ctx.ExecutionContext = ec
		ctx.Statement = ec.statement
		ctx.Params = ec.args
	}

	d := dberr.Fold(c.engine.handlers, ctx, dberr.Decision{
		IsDisconnect:   isDisconnect,
		InvalidatePool: true,
	})

	// A handler may declare a disconnect the dialect missed, or retract
	// one it declared.
	if d.IsDisconnect && wrapped.Kind != dberr.KindDisconnect {
		wrapped.Kind = dberr.KindDisconnect
	}
	if !d.IsDisconnect && wrapped.Kind == dberr.KindDisconnect {
		wrapped.Kind = dberr.KindOperational
	}

	if d.IsDisconnect {
		c.Invalidate()
		if c.engine.invalidateHook != nil && !c.detached {
			c.engine.invalidateHook(c, d.InvalidatePool)
		}
	}

	if d.Replacement != nil {
		return d.Replacement
	}
	return wrapped
}
