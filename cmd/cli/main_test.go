package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/engine"
	"github.com/RamonWill/strata/memdb"
)

func setupTestCLI(t *testing.T) (*CLI, *memdb.Driver) {
	t.Helper()

	drv := memdb.New()
	eng := engine.New(memdb.NewDialect(drv), &core.URL{Database: "test"})
	conn, err := eng.Connect()
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &CLI{
		conn:    conn,
		dialect: eng.Dialect().Name(),
		history: make([]string, 0),
	}, drv
}

func TestCLIExecuteSelect(t *testing.T) {
	cli, drv := setupTestCLI(t)
	drv.On("SELECT id, name FROM users", memdb.Result{
		Cols: []string{"id", "name"},
		Rows: [][]any{{1, "alice"}, {2, "bob"}},
	})

	res, err := cli.conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText failed: %v", err)
	}
	defer res.Close()

	if !res.ReturnsRows() {
		t.Fatal("expected a row-returning result")
	}
	rows, err := res.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(rows))
	}
}

func TestCLIAddToHistory(t *testing.T) {
	cli, _ := setupTestCLI(t)

	cli.addToHistory("SELECT * FROM test")
	cli.addToHistory("INSERT INTO test VALUES (1)")

	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(cli.history))
	}

	// Adding duplicate of last command should not increase count
	cli.addToHistory("INSERT INTO test VALUES (1)")
	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries after duplicate, got %d", len(cli.history))
	}
}

func TestCLIHistoryLimit(t *testing.T) {
	cli, _ := setupTestCLI(t)

	for i := 0; i < 1100; i++ {
		cli.addToHistory("SELECT " + string(rune(i)))
	}

	if len(cli.history) > 1000 {
		t.Errorf("Expected history to be limited to 1000, got %d", len(cli.history))
	}
}

func TestCLIGetPrompt(t *testing.T) {
	cli, _ := setupTestCLI(t)

	prompt := cli.getPrompt(false)
	if !strings.Contains(prompt, "mem") {
		t.Error("Expected prompt to contain the dialect name")
	}

	prompt = cli.getPrompt(true)
	if !strings.Contains(prompt, "...>") {
		t.Error("Expected multi-line prompt to contain '...>'")
	}

	txn, err := cli.conn.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	cli.txn = txn
	prompt = cli.getPrompt(false)
	if !strings.Contains(prompt, "(txn)") {
		t.Error("Expected prompt to flag the open transaction")
	}
	txn.Rollback()
}

func TestCLIHandleCommand(t *testing.T) {
	cli, _ := setupTestCLI(t)

	tests := []struct {
		command  string
		expected bool // should return true (command handled)
	}{
		{".help", true},
		{".version", true},
		{".history", true},
		{".tables", true},
		{".unknown", true}, // Unknown commands are still handled (with error message)
	}

	for _, test := range tests {
		result := cli.handleCommand(test.command)
		if result != test.expected {
			t.Errorf("handleCommand(%s) = %v, expected %v", test.command, result, test.expected)
		}
	}
}

func TestCLITransactionCommands(t *testing.T) {
	cli, drv := setupTestCLI(t)
	drv.On("INSERT INTO t VALUES (?)", memdb.Result{RowCount: 1})

	cli.handleCommand(".begin")
	if cli.txn == nil {
		t.Fatal("Expected .begin to open a transaction")
	}

	if _, err := cli.conn.ExecuteText("INSERT INTO t VALUES (?)", 1); err != nil {
		t.Fatalf("ExecuteText failed: %v", err)
	}

	cli.handleCommand(".rollback")
	if cli.txn != nil {
		t.Error("Expected .rollback to clear the transaction")
	}
	if len(drv.Committed()) != 0 {
		t.Errorf("Expected nothing committed after rollback, got %v", drv.Committed())
	}
}

func TestVersionVariable(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"single statement", "SELECT * FROM test", 1},
		{"two statements", "SELECT * FROM a; SELECT * FROM b", 2},
		{"with semicolons", "INSERT INTO t VALUES (1); INSERT INTO t VALUES (2);", 2},
		{"with comments", "-- comment\nSELECT * FROM test", 1},
		{"multiline", "CREATE TABLE t (\n  id INT,\n  name STRING\n);", 1},
		{"empty", "", 0},
		{"only semicolons", ";;;", 0},
		{"string with semicolon", "INSERT INTO t (s) VALUES ('a;b')", 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := splitStatements(test.input)
			if len(result) != test.expected {
				t.Errorf("splitStatements(%q) = %d statements, expected %d", test.input, len(result), test.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"exact", 5, "exact"},
		{"ab", 10, "ab"},
	}

	for _, test := range tests {
		result := truncate(test.input, test.max)
		if result != test.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", test.input, test.max, result, test.expected)
		}
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf)
	tbl.Header([]string{"id", "name"})
	tbl.Row([]string{"1", "alice"})
	tbl.Row([]string{"2", "bob"})
	tbl.Render()

	out := buf.String()
	if !strings.Contains(out, "| id | name") {
		t.Errorf("Expected header row, got:\n%s", out)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") {
		t.Errorf("Expected data rows, got:\n%s", out)
	}
	if !strings.Contains(out, "+----+") {
		t.Errorf("Expected separators, got:\n%s", out)
	}
}

func TestImportFileNotFound(t *testing.T) {
	cli, _ := setupTestCLI(t)

	err := cli.importFile("nonexistent.sql")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestImportCommand(t *testing.T) {
	cli, _ := setupTestCLI(t)

	result := cli.handleCommand(".import")
	if !result {
		t.Error("Expected .import to be handled")
	}
}
