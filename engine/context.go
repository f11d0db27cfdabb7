package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/driver"
)

// phase tracks the execution context through its strictly sequential
// lifecycle. No phase is ever skipped.
type phase int

const (
	phaseCreated phase = iota
	phaseCursorAcquired
	phasePreExecDone
	phaseExecuted
	phasePostExecDone
	phaseResultBound
)

func (p phase) String() string {
	switch p {
	case phaseCreated:
		return "created"
	case phaseCursorAcquired:
		return "cursor-acquired"
	case phasePreExecDone:
		return "pre-exec-done"
	case phaseExecuted:
		return "executed"
	case phasePostExecDone:
		return "post-exec-done"
	case phaseResultBound:
		return "result-bound"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ExecContext is the per-execution messenger: it owns the cursor for one
// statement execution and carries state between the pre- and post-execute
// hooks. It is destroyed once the result is bound and must not outlive the
// cursor it created.
type ExecContext struct {
	conn  *Connection
	// root is the connection that initiated the execution. It always
	// shares conn's underlying raw driver connection.
	root *Connection

	compiled    *core.Compiled
	namedParams map[string]any
	paramSets   []map[string]any // executemany

	// Populated no later than the end of pre-exec.
	statement string
	args      []any
	argSets   [][]any

	isInsert         bool
	isUpdate         bool
	shouldAutocommit bool

	prefetchCols  []*core.Column
	postfetchCols []*core.Column

	cursor driver.Cursor
	phase  phase

	rowcount           int64
	lastInsertID       int64
	hasLastInsertID    bool
	lastInsertedParams map[string]any
	outParams          map[string]any

	// buffered holds pre-captured cursor contents when the context
	// decided the cursor cannot outlive execution.
	buffered *bufferedData
}

type bufferedData struct {
	desc []driver.ColumnDesc
	rows [][]any
}

func newExecContext(conn *Connection, compiled *core.Compiled, params map[string]any) *ExecContext {
	return &ExecContext{
		conn:        conn,
		root:        conn,
		compiled:    compiled,
		namedParams: params,
		isInsert:    compiled != nil && compiled.IsInsert,
		isUpdate:    compiled != nil && compiled.IsUpdate,
		phase:       phaseCreated,
	}
}

func newTextExecContext(conn *Connection, stmt string, args []any) *ExecContext {
	ec := &ExecContext{
		conn:      conn,
		root:      conn,
		statement: stmt,
		args:      args,
		phase:     phaseCreated,
	}
	ec.shouldAutocommit = shouldAutocommitText(stmt)
	return ec
}

// advance enforces the sequential state machine.
func (ec *ExecContext) advance(from, to phase) error {
	if ec.phase != from {
		return fmt.Errorf("execution context in phase %s, expected %s", ec.phase, from)
	}
	ec.phase = to
	return nil
}

// Connection returns the connection default generators may execute
// against; it references the same raw connection as Root.
func (ec *ExecContext) Connection() *Connection { return ec.conn }

// Root returns the connection that initiated this execution.
func (ec *ExecContext) Root() *Connection { return ec.root }

// Statement returns the final statement text; valid once pre-exec is
// done.
func (ec *ExecContext) Statement() string { return ec.statement }

// Args returns the final driver parameters; valid once pre-exec is done.
func (ec *ExecContext) Args() []any { return ec.args }

// IsInsert reports whether the statement is an INSERT.
func (ec *ExecContext) IsInsert() bool { return ec.isInsert }

// IsUpdate reports whether the statement is an UPDATE.
func (ec *ExecContext) IsUpdate() bool { return ec.isUpdate }

// createCursor acquires the cursor from the owning connection. Dialects
// needing a different cursor flavor wrap the driver connection instead.
func (ec *ExecContext) createCursor() error {
	if err := ec.advance(phaseCreated, phaseCursorAcquired); err != nil {
		return err
	}
	cur, err := ec.conn.raw.Cursor()
	if err != nil {
		return err
	}
	ec.cursor = cur
	return nil
}

// preExec finalizes statement text and parameters. For compiled
// statements it fires client-side column defaults into the parameter set
// (recording them as prefetch columns) and converts named parameters to
// the dialect's paramstyle.
func (ec *ExecContext) preExec() error {
	if err := ec.advance(phaseCursorAcquired, phasePreExecDone); err != nil {
		return err
	}
	if ec.compiled == nil {
		// Raw text executes as-is.
		return nil
	}

	c := ec.compiled
	if c.IsTextual {
		ec.statement = c.Text
		ec.args = namedToPositional(c, ec.namedParams)
		ec.shouldAutocommit = shouldAutocommitText(c.Text)
		return nil
	}

	fire := func(params map[string]any) map[string]any {
		if params == nil {
			params = make(map[string]any)
		}
		for _, col := range c.Prefetch {
			if _, present := params[col.Name]; !present && col.HasClientDefault() {
				params[col.Name] = col.Default()
			}
		}
		return params
	}

	if ec.paramSets != nil {
		ec.argSets = make([][]any, len(ec.paramSets))
		for i, set := range ec.paramSets {
			set = fire(set)
			stmt, args, err := ec.convert(c.Text, set)
			if err != nil {
				return err
			}
			ec.statement = stmt
			ec.argSets[i] = args
		}
	} else {
		params := fire(ec.namedParams)
		stmt, args, err := ec.convert(c.Text, params)
		if err != nil {
			return err
		}
		ec.statement = stmt
		ec.args = args
		ec.namedParams = params
	}

	ec.prefetchCols = append(ec.prefetchCols, c.Prefetch...)
	ec.shouldAutocommit = c.IsInsert || c.IsUpdate
	return nil
}

// convert rewrites named-parameter text into the dialect's paramstyle and
// orders the parameter values positionally.
func (ec *ExecContext) convert(text string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	stmt, args, err := sqlx.Named(text, params)
	if err != nil {
		return "", nil, fmt.Errorf("bind parameters: %w", err)
	}
	stmt = sqlx.Rebind(ec.conn.engine.dialect.Paramstyle().BindType(), stmt)
	return stmt, args, nil
}

// namedToPositional orders parameter values by the compiled bind-name
// order without rewriting the text.
func namedToPositional(c *core.Compiled, params map[string]any) []any {
	if len(c.BindNames) == 0 {
		return nil
	}
	args := make([]any, len(c.BindNames))
	for i, name := range c.BindNames {
		args[i] = params[name]
	}
	return args
}

// execute invokes the dialect's execute adapter.
func (ec *ExecContext) execute() error {
	if err := ec.advance(phasePreExecDone, phaseExecuted); err != nil {
		return err
	}
	d := ec.conn.engine.dialect
	switch {
	case ec.argSets != nil:
		return d.DoExecuteMany(ec.cursor, ec.statement, ec.argSets)
	case ec.args == nil && ec.compiled == nil:
		return d.DoExecuteNoParams(ec.cursor, ec.statement)
	default:
		return d.DoExecute(ec.cursor, ec.statement, ec.args)
	}
}

// postExec captures rowcount and insert bookkeeping, records which
// columns the server defaulted for postfetch, and pre-buffers the cursor
// when its contents cannot outlive execution.
func (ec *ExecContext) postExec() error {
	if err := ec.advance(phaseExecuted, phasePostExecDone); err != nil {
		return err
	}
	ec.rowcount = ec.cursor.RowCount()

	if ec.isInsert || ec.isUpdate {
		if ec.compiled != nil {
			ec.postfetchCols = append(ec.postfetchCols, ec.compiled.Postfetch...)
		}
	}
	if ec.isInsert {
		if id, ok := ec.cursor.LastInsertID(); ok {
			ec.lastInsertID = id
			ec.hasLastInsertID = true
		}
		if ec.namedParams != nil {
			ec.lastInsertedParams = make(map[string]any, len(ec.namedParams))
			for k, v := range ec.namedParams {
				ec.lastInsertedParams[k] = v
			}
		}
	}

	if ec.compiled != nil && ec.compiled.HasOutParams() {
		if err := ec.extractOutParams(); err != nil {
			return err
		}
	}

	// Implicit-returning rows must survive the cursor: the statement is
	// committable and the cursor closes before the caller reads them.
	if ec.compiled != nil && ec.compiled.ImplicitReturning &&
		ec.conn.engine.dialect.ImplicitReturning() && ec.cursor.Description() != nil {
		rows, err := ec.cursor.FetchAll()
		if err != nil {
			return err
		}
		ec.buffered = &bufferedData{desc: ec.cursor.Description(), rows: rows}
	}
	return nil
}

// extractOutParams pulls raw output-parameter values from the cursor and
// coerces each through the bind type registered under its name. Values
// are matched to names positionally; types are always looked up by name.
func (ec *ExecContext) extractOutParams() error {
	opc, ok := ec.cursor.(driver.OutParamCursor)
	if !ok {
		return dberr.NotImplemented("output parameters")
	}
	names := ec.compiled.OutParams
	raw, err := opc.OutParamValues(names)
	if err != nil {
		return err
	}
	if len(raw) != len(names) {
		return fmt.Errorf("out parameters: got %d values for %d names", len(raw), len(names))
	}
	ec.outParams = make(map[string]any, len(names))
	for i, name := range names {
		ec.outParams[name] = coerceValue(ec.compiled.TypeOf(name), raw[i])
	}
	return nil
}

// bindResult selects the fetch strategy and hands the context over to the
// result. The context is complete after this; it is not reused.
func (ec *ExecContext) bindResult() (*Result, error) {
	if err := ec.advance(phasePostExecDone, phaseResultBound); err != nil {
		return nil, err
	}
	var strat fetchStrategy
	if ec.buffered != nil {
		// The captured rows replay independently of the cursor.
		ec.cursor.Close()
		strat = newBufferedStrategy(ec.buffered.desc, ec.buffered.rows)
	} else {
		strat = &directStrategy{cursor: ec.cursor}
	}
	return newResult(ec, strat), nil
}

// LastRowHasDefaults reports whether the last inserted or updated row
// contained server-side defaults that must be fetched back.
func (ec *ExecContext) LastRowHasDefaults() bool {
	return len(ec.postfetchCols) > 0
}

// PostfetchCols lists the columns whose values the database produced.
func (ec *ExecContext) PostfetchCols() []*core.Column { return ec.postfetchCols }

// PrefetchCols lists the columns whose client-side defaults fired during
// pre-exec.
func (ec *ExecContext) PrefetchCols() []*core.Column { return ec.prefetchCols }

// RowCount returns the driver rowcount, as interpreted by post-exec.
func (ec *ExecContext) RowCount() int64 { return ec.rowcount }

// LastInsertID returns the generated row id captured during post-exec.
func (ec *ExecContext) LastInsertID() (int64, bool) {
	return ec.lastInsertID, ec.hasLastInsertID
}

// LastInsertedParams returns the parameter set of the last insert.
func (ec *ExecContext) LastInsertedParams() map[string]any {
	return ec.lastInsertedParams
}

// HandleError is the first point of contact for a raised driver error,
// before the exception translator runs. The default annotates nothing and
// returns the error unchanged.
func (ec *ExecContext) HandleError(err error) error { return err }

// shouldAutocommitText reports whether raw statement text is committable
// when no explicit transaction is active.
func shouldAutocommitText(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	for _, kw := range []string{"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TRUNCATE"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

// coerceValue applies a generic bind type to a raw driver value.
func coerceValue(t core.Type, v any) any {
	if v == nil {
		return nil
	}
	switch t.Kind {
	case core.IntegerType, core.BigIntegerType:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i
			}
		}
	case core.FloatType, core.NumericType:
		switch n := v.(type) {
		case float32:
			return float64(n)
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	case core.StringType, core.TextType:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		default:
			return fmt.Sprint(v)
		}
	case core.BooleanType:
		switch b := v.(type) {
		case bool:
			return b
		case int:
			return b != 0
		case int64:
			return b != 0
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return v
}
