package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/driver"
)

// ErrResultClosed is returned when fetching from a closed result.
var ErrResultClosed = errors.New("result is closed")

// ResultMeta resolves row keys to slots. A column is addressable by its
// positional index, its string name, or its *core.Column object; all
// three resolve to the same slot.
type ResultMeta struct {
	names   []string
	byName  map[string]int
	byCol   map[*core.Column]int
	ambiguous map[string]bool
}

func newResultMeta(desc []driver.ColumnDesc, cols []*core.Column) *ResultMeta {
	m := &ResultMeta{
		names:     make([]string, len(desc)),
		byName:    make(map[string]int, len(desc)),
		byCol:     map[*core.Column]int{},
		ambiguous: map[string]bool{},
	}
	for i, d := range desc {
		m.names[i] = d.Name
		if _, dup := m.byName[d.Name]; dup {
			m.ambiguous[d.Name] = true
		} else {
			m.byName[d.Name] = i
		}
	}
	for i, col := range cols {
		if col == nil || i >= len(desc) {
			continue
		}
		m.byCol[col] = i
	}
	return m
}

// Names returns the column names in positional order.
func (m *ResultMeta) Names() []string { return m.names }

// Index resolves key (int, string or *core.Column) to a slot.
func (m *ResultMeta) Index(key any) (int, error) {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(m.names) {
			return 0, fmt.Errorf("column index %d out of range", k)
		}
		return k, nil
	case string:
		if m.ambiguous[k] {
			return 0, fmt.Errorf("ambiguous column name %q", k)
		}
		i, ok := m.byName[k]
		if !ok {
			return 0, fmt.Errorf("no such column %q", k)
		}
		return i, nil
	case *core.Column:
		if i, ok := m.byCol[k]; ok {
			return i, nil
		}
		// Fall back to the column's name: textual statements carry no
		// column objects, but the name still resolves.
		return m.Index(k.Name)
	default:
		return 0, fmt.Errorf("unsupported row key type %T", key)
	}
}

// Row is one fetched row with keyed access through the result's meta.
type Row struct {
	values []any
	meta   *ResultMeta
}

// Values returns the raw row slots in positional order.
func (r *Row) Values() []any { return r.values }

// Value resolves key through the keymap and returns the slot's value.
func (r *Row) Value(key any) (any, error) {
	i, err := r.meta.Index(key)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// fetchStrategy abstracts how rows reach the result: straight off the
// live cursor, or replayed from a pre-captured buffer.
type fetchStrategy interface {
	fetchOne() ([]any, error)
	fetchMany(n int) ([][]any, error)
	fetchAll() ([][]any, error)
	description() []driver.ColumnDesc
	close()
}

// directStrategy reads from the live cursor and closes it at exhaustion.
type directStrategy struct {
	cursor driver.Cursor
	closed bool
}

func (s *directStrategy) fetchOne() ([]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	row, err := s.cursor.FetchOne()
	if errors.Is(err, io.EOF) {
		s.close()
		return nil, io.EOF
	}
	return row, err
}

func (s *directStrategy) fetchMany(n int) ([][]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	rows, err := s.cursor.FetchMany(n)
	if err != nil {
		return nil, err
	}
	if len(rows) < n {
		s.close()
	}
	return rows, nil
}

func (s *directStrategy) fetchAll() ([][]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	rows, err := s.cursor.FetchAll()
	s.close()
	return rows, err
}

func (s *directStrategy) description() []driver.ColumnDesc {
	return s.cursor.Description()
}

func (s *directStrategy) close() {
	if !s.closed {
		s.closed = true
		s.cursor.Close()
	}
}

// bufferedStrategy replays captured rows; it never touches a cursor and
// survives transaction boundaries. Rewindable.
type bufferedStrategy struct {
	desc   []driver.ColumnDesc
	rows   [][]any
	pos    int
	closed bool
}

func newBufferedStrategy(desc []driver.ColumnDesc, rows [][]any) *bufferedStrategy {
	return &bufferedStrategy{desc: desc, rows: rows}
}

func (s *bufferedStrategy) fetchOne() ([]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *bufferedStrategy) fetchMany(n int) ([][]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	end := s.pos + n
	if end > len(s.rows) {
		end = len(s.rows)
	}
	rows := s.rows[s.pos:end]
	s.pos = end
	return rows, nil
}

func (s *bufferedStrategy) fetchAll() ([][]any, error) {
	if s.closed {
		return nil, ErrResultClosed
	}
	rows := s.rows[s.pos:]
	s.pos = len(s.rows)
	return rows, nil
}

func (s *bufferedStrategy) description() []driver.ColumnDesc { return s.desc }

func (s *bufferedStrategy) close() { s.closed = true }

func (s *bufferedStrategy) rewind() { s.pos = 0 }

// Result is the caller-facing view of one execution: rows when the
// statement returned any, plus post-execute bookkeeping either way.
type Result struct {
	ec    *ExecContext
	strat fetchStrategy
	meta  *ResultMeta
}

func newResult(ec *ExecContext, strat fetchStrategy) *Result {
	r := &Result{ec: ec, strat: strat}
	if desc := strat.description(); desc != nil {
		var cols []*core.Column
		if ec.compiled != nil {
			cols = ec.compiled.Columns
		}
		r.meta = newResultMeta(desc, cols)
	}
	return r
}

// ReturnsRows reports whether the execution produced a row set.
func (r *Result) ReturnsRows() bool { return r.meta != nil }

// Columns returns result column names in positional order, or nil when
// the statement returned no rows.
func (r *Result) Columns() []string {
	if r.meta == nil {
		return nil
	}
	return r.meta.Names()
}

// Meta exposes the key resolver for row access.
func (r *Result) Meta() *ResultMeta { return r.meta }

// FetchOne returns the next row, or (nil, nil) at exhaustion.
func (r *Result) FetchOne() (*Row, error) {
	if r.meta == nil {
		return nil, errors.New("result returns no rows")
	}
	values, err := r.strat.fetchOne()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fetchError(err)
	}
	return &Row{values: values, meta: r.meta}, nil
}

// FetchMany returns up to n rows; a short slice signals exhaustion.
func (r *Result) FetchMany(n int) ([]*Row, error) {
	if r.meta == nil {
		return nil, errors.New("result returns no rows")
	}
	raw, err := r.strat.fetchMany(n)
	if err != nil {
		return nil, r.fetchError(err)
	}
	return r.wrap(raw), nil
}

// FetchAll drains the remaining rows.
func (r *Result) FetchAll() ([][]any, error) {
	if r.meta == nil {
		return nil, errors.New("result returns no rows")
	}
	raw, err := r.strat.fetchAll()
	if err != nil {
		return nil, r.fetchError(err)
	}
	return raw, nil
}

// FetchAllRows drains the remaining rows with keyed access.
func (r *Result) FetchAllRows() ([]*Row, error) {
	raw, err := r.FetchAll()
	if err != nil {
		return nil, err
	}
	return r.wrap(raw), nil
}

func (r *Result) wrap(raw [][]any) []*Row {
	rows := make([]*Row, len(raw))
	for i, v := range raw {
		rows[i] = &Row{values: v, meta: r.meta}
	}
	return rows
}

// Scalar returns the first column of the first row, or nil when the
// result is empty, and closes the result.
func (r *Result) Scalar() (any, error) {
	defer r.Close()
	row, err := r.FetchOne()
	if err != nil || row == nil {
		return nil, err
	}
	if len(row.values) == 0 {
		return nil, nil
	}
	return row.values[0], nil
}

// Rewind restarts iteration from the first row. Only buffered results
// support it.
func (r *Result) Rewind() error {
	b, ok := r.strat.(*bufferedStrategy)
	if !ok {
		return errors.New("result is not rewindable")
	}
	b.rewind()
	return nil
}

// RowCount returns the affected-row count the driver reported.
func (r *Result) RowCount() int64 { return r.ec.RowCount() }

// LastInsertID returns the generated row id of an insert, when the
// driver supports it.
func (r *Result) LastInsertID() (int64, bool) { return r.ec.LastInsertID() }

// LastInsertedParams returns the parameter set of the last insert.
func (r *Result) LastInsertedParams() map[string]any { return r.ec.LastInsertedParams() }

// OutParameters returns output-parameter values keyed by name, coerced
// through their bind types.
func (r *Result) OutParameters() map[string]any { return r.ec.outParams }

// Context returns the execution context that produced this result.
func (r *Result) Context() *ExecContext { return r.ec }

// Close releases the result's cursor, if it still holds one. Closing is
// idempotent.
func (r *Result) Close() { r.strat.close() }

// fetchError routes a fetch failure through the connection's translator
// so cursor-level disconnects invalidate like execution-level ones.
func (r *Result) fetchError(err error) error {
	if errors.Is(err, ErrResultClosed) {
		return err
	}
	return r.ec.conn.handleError(err, r.ec, nil)
}
