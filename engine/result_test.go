package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/memdb"
)

func scriptUsersSelect(drv *memdb.Driver) {
	drv.On("SELECT id, name FROM users", memdb.Result{
		Cols: []string{"id", "name"},
		Rows: [][]any{{1, "alice"}, {2, "bob"}, {3, "carol"}},
	})
}

func TestResultKeymap(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	idCol := &core.Column{Name: "id", Table: "users"}
	nameCol := &core.Column{Name: "name", Table: "users"}
	compiled := &core.Compiled{
		Text:    "SELECT id, name FROM users",
		Columns: []*core.Column{idCol, nameCol},
	}
	res, err := conn.Execute(compiled, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Close()

	row, err := res.FetchOne()
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}

	// Index, name and column object all resolve to the same slot.
	for _, key := range []any{1, "name", nameCol} {
		v, err := row.Value(key)
		if err != nil {
			t.Fatalf("Value(%v): %v", key, err)
		}
		if v != "alice" {
			t.Errorf("Value(%v) = %v, want alice", key, v)
		}
	}
}

func TestResultKeymapColumnByNameFallback(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	defer res.Close()

	row, err := res.FetchOne()
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	// A column object the statement never saw still resolves by name.
	v, err := row.Value(&core.Column{Name: "id"})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != 1 {
		t.Errorf("Value = %v, want 1", v)
	}
}

func TestResultKeymapErrors(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT a.id, b.id FROM a, b", memdb.Result{
		Cols: []string{"id", "id"},
		Rows: [][]any{{1, 2}},
	})
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT a.id, b.id FROM a, b")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	defer res.Close()

	row, err := res.FetchOne()
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}

	if _, err := row.Value("id"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("duplicate name should be ambiguous, got %v", err)
	}
	if v, err := row.Value(1); err != nil || v != 2 {
		t.Errorf("positional access should bypass ambiguity: %v, %v", v, err)
	}
	if _, err := row.Value("missing"); err == nil {
		t.Error("unknown name should fail")
	}
	if _, err := row.Value(5); err == nil {
		t.Error("out-of-range index should fail")
	}
	if _, err := row.Value(3.14); err == nil {
		t.Error("unsupported key type should fail")
	}
}

func TestDirectFetchExhaustion(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}

	var fetched int
	for {
		row, err := res.FetchOne()
		if err != nil {
			t.Fatalf("FetchOne: %v", err)
		}
		if row == nil {
			break
		}
		fetched++
	}
	if fetched != 3 {
		t.Errorf("fetched %d rows, want 3", fetched)
	}

	// Exhaustion closed the cursor; further fetches report closure.
	if _, err := res.FetchAll(); !errors.Is(err, ErrResultClosed) {
		t.Errorf("FetchAll after exhaustion: %v, want ErrResultClosed", err)
	}
}

func TestDirectFetchMany(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}

	rows, err := res.FetchMany(2)
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// A short batch signals exhaustion and closes the cursor.
	rows, err = res.FetchMany(5)
	if err != nil {
		t.Fatalf("second FetchMany: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if _, err := res.FetchMany(1); !errors.Is(err, ErrResultClosed) {
		t.Errorf("FetchMany after short batch: %v, want ErrResultClosed", err)
	}
}

func TestResultNotRewindable(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	defer res.Close()

	if err := res.Rewind(); err == nil {
		t.Error("cursor-backed result should not be rewindable")
	}
}

func TestScalar(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT count(*) FROM users", memdb.Result{
		Cols: []string{"count"},
		Rows: [][]any{{42}},
	})
	drv.On("SELECT id FROM users WHERE 0 = 1", memdb.Result{
		Cols: []string{"id"},
	})
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT count(*) FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	v, err := res.Scalar()
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if v != 42 {
		t.Errorf("Scalar = %v, want 42", v)
	}

	res, err = conn.ExecuteText("SELECT id FROM users WHERE 0 = 1")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	v, err = res.Scalar()
	if err != nil {
		t.Fatalf("Scalar on empty result: %v", err)
	}
	if v != nil {
		t.Errorf("Scalar on empty result = %v, want nil", v)
	}
}

func TestExecResultReturnsNoRows(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("DELETE FROM users", memdb.Result{RowCount: 3})
	conn := connect(t, e)

	res, err := conn.ExecuteText("DELETE FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	defer res.Close()

	if res.ReturnsRows() {
		t.Error("DELETE should not return rows")
	}
	if res.Columns() != nil {
		t.Errorf("Columns = %v, want nil", res.Columns())
	}
	if res.RowCount() != 3 {
		t.Errorf("RowCount = %d, want 3", res.RowCount())
	}
	if _, err := res.FetchOne(); err == nil {
		t.Error("fetching from a rowless result should fail")
	}
}

func TestImplicitReturningBuffersRows(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("INSERT INTO users (name) VALUES (?) RETURNING id", memdb.Result{
		Cols:     []string{"id"},
		Rows:     [][]any{{7}},
		RowCount: 1,
	})
	conn := connect(t, e)

	compiled := &core.Compiled{
		Text:              "INSERT INTO users (name) VALUES (:name) RETURNING id",
		BindNames:         []string{"name"},
		IsInsert:          true,
		ImplicitReturning: true,
	}
	res, err := conn.Execute(compiled, map[string]any{"name": "dave"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Close()

	// The statement autocommitted and its cursor is gone, but the
	// returned rows were captured and replay.
	if got := len(drv.Committed()); got != 1 {
		t.Fatalf("committed %d statements, want 1", got)
	}
	rows, err := res.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != 7 {
		t.Fatalf("rows = %v, want [[7]]", rows)
	}

	// Buffered results rewind.
	if err := res.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	row, err := res.FetchOne()
	if err != nil {
		t.Fatalf("FetchOne after rewind: %v", err)
	}
	if row == nil {
		t.Fatal("expected a row after rewind")
	}
	if v, _ := row.Value("id"); v != 7 {
		t.Errorf("id = %v, want 7", v)
	}
}

func TestResultCloseIsIdempotent(t *testing.T) {
	e, drv := newTestEngine(t)
	scriptUsersSelect(drv)
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	res.Close()
	res.Close()

	if _, err := res.FetchOne(); !errors.Is(err, ErrResultClosed) {
		t.Errorf("FetchOne after Close: %v, want ErrResultClosed", err)
	}
}
