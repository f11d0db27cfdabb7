package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/engine"

	_ "github.com/RamonWill/strata/dialect/duckdb"
	_ "github.com/RamonWill/strata/dialect/postgres"
	_ "github.com/RamonWill/strata/dialect/sqlite"
	_ "github.com/RamonWill/strata/memdb"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	conn        *engine.Connection
	dialect     string
	txn         *engine.Transaction
	history     []string
	historyFile string
}

func main() {
	dialectName := flag.String("dialect", "sqlite", "Dialect to connect with")
	database := flag.String("database", "", "Database name or file path")
	host := flag.String("host", "", "Server host")
	port := flag.Int("port", 0, "Server port")
	user := flag.String("user", "", "User name")
	password := flag.String("password", "", "Password")
	configFile := flag.String("config", "", "YAML engine configuration file")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute (non-interactive)")
	echo := flag.Bool("echo", false, "Log every executed statement")
	flag.Parse()

	printBanner()

	var (
		eng *engine.Engine
		err error
	)
	if *configFile != "" {
		var cfg *engine.Config
		cfg, err = engine.LoadConfig(*configFile)
		if err == nil {
			eng, err = cfg.Engine()
		}
	} else {
		var opts []engine.Option
		if *echo {
			opts = append(opts, engine.WithEcho())
		}
		eng, err = engine.Open(*dialectName, &core.URL{
			Backend:  *dialectName,
			Username: *user,
			Password: *password,
			Host:     *host,
			Port:     *port,
			Database: *database,
		}, opts...)
	}
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}

	conn, err := eng.Connect()
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("%sConnected (%s)%s\n", SuccessColor, eng.Dialect().Name(), ResetColor)

	cli := &CLI{
		conn:        conn,
		dialect:     eng.Dialect().Name(),
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	cli.loadHistory()

	if *sqlFile != "" {
		if err := cli.importFile(*sqlFile); err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("strata v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║   Multi-dialect SQL Console           ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		prompt := cli.getPrompt(multiLineBuffer.Len() > 0)
		fmt.Print(prompt)

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Special commands only apply outside multi-line mode
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Multi-line support: accumulate until we see a semicolon
		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		sql := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(sql) == "" {
			continue
		}

		cli.addToHistory(sql + ";")
		cli.execute(sql)
	}
}

func (cli *CLI) execute(sql string) {
	res, err := cli.conn.ExecuteText(sql)
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	defer res.Close()
	cli.display(res)
}

func (cli *CLI) display(res *engine.Result) {
	if !res.ReturnsRows() {
		if n := res.RowCount(); n >= 0 {
			fmt.Printf("%s✓ %d row(s) affected%s\n", SuccessColor, n, ResetColor)
		} else {
			fmt.Printf("%s✓ OK%s\n", SuccessColor, ResetColor)
		}
		return
	}

	rows, err := res.FetchAll()
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}

	t := NewTable(os.Stdout)
	t.Header(res.Columns())
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		t.Row(cells)
	}
	t.Render()
	fmt.Printf("%d row(s)\n", len(rows))
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	txnPart := ""
	if cli.txn != nil {
		txnPart = " (txn)"
	}

	return fmt.Sprintf("%s%s%s>%s ", PromptColor, cli.dialect, txnPart, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		cli.conn.Close()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		schema := ""
		if len(parts) > 1 {
			schema = parts[1]
		}
		names, err := cli.conn.TableNames(schema)
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			return true
		}
		for _, name := range names {
			fmt.Println("  " + name)
		}

	case ".columns":
		if len(parts) < 2 {
			fmt.Printf("%s✗ Usage: .columns <table> [schema]%s\n", ErrorColor, ResetColor)
			return true
		}
		schema := ""
		if len(parts) > 2 {
			schema = parts[2]
		}
		cols, err := cli.conn.Columns(parts[1], schema)
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			return true
		}
		t := NewTable(os.Stdout)
		t.Header([]string{"name", "type", "nullable", "default"})
		for _, c := range cols {
			t.Row([]string{c.Name, c.Type.String(), fmt.Sprint(c.Nullable), c.Default})
		}
		t.Render()

	case ".indexes":
		if len(parts) < 2 {
			fmt.Printf("%s✗ Usage: .indexes <table> [schema]%s\n", ErrorColor, ResetColor)
			return true
		}
		schema := ""
		if len(parts) > 2 {
			schema = parts[2]
		}
		indexes, err := cli.conn.Indexes(parts[1], schema)
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			return true
		}
		t := NewTable(os.Stdout)
		t.Header([]string{"name", "unique", "columns"})
		for _, ix := range indexes {
			t.Row([]string{ix.Name, fmt.Sprint(ix.Unique), strings.Join(ix.ColumnNames, ", ")})
		}
		t.Render()

	case ".begin":
		if cli.txn != nil {
			fmt.Printf("%s✗ Transaction already open%s\n", ErrorColor, ResetColor)
			return true
		}
		txn, err := cli.conn.Begin()
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			return true
		}
		cli.txn = txn
		fmt.Printf("%s✓ Transaction started%s\n", SuccessColor, ResetColor)

	case ".commit":
		if cli.txn == nil {
			fmt.Printf("%s✗ No open transaction%s\n", ErrorColor, ResetColor)
			return true
		}
		if err := cli.txn.Commit(); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s✓ Committed%s\n", SuccessColor, ResetColor)
		}
		cli.txn = nil

	case ".rollback":
		if cli.txn == nil {
			fmt.Printf("%s✗ No open transaction%s\n", ErrorColor, ResetColor)
			return true
		}
		if err := cli.txn.Rollback(); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s✓ Rolled back%s\n", SuccessColor, ResetColor)
		}
		cli.txn = nil

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("strata version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .import <file.sql>%s\n", ErrorColor, ResetColor)
		}

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .help, .h            Show this help message")
	fmt.Println("  .quit, .exit         Exit the console")
	fmt.Println("  .tables [schema]     List tables")
	fmt.Println("  .columns <t> [s]     Describe a table's columns")
	fmt.Println("  .indexes <t> [s]     List a table's indexes")
	fmt.Println("  .begin               Start a transaction")
	fmt.Println("  .commit              Commit the open transaction")
	fmt.Println("  .rollback            Roll back the open transaction")
	fmt.Println("  .import <file>       Execute SQL statements from a file")
	fmt.Println("  .history             Show command history")
	fmt.Println("  .clear               Clear the screen")
	fmt.Println("  .version             Show version info")
	fmt.Println()
	fmt.Println("Everything else is sent to the backend as SQL, terminated by ;")
	fmt.Println()
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strata_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	// Save last 1000 entries
	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile reads and executes SQL statements from a file
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	statements := splitStatements(string(data))

	successCount := 0
	errorCount := 0

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		res, err := cli.conn.ExecuteText(stmt)
		if err != nil {
			fmt.Printf("%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(stmt, 50), ResetColor)
			fmt.Printf("      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++
		if res.ReturnsRows() {
			rows, _ := res.FetchAll()
			fmt.Printf("%s[%d] ✓ %s (%d rows)%s\n", SuccessColor, i+1, truncate(stmt, 50), len(rows), ResetColor)
		} else {
			fmt.Printf("%s[%d] ✓ %s%s\n", SuccessColor, i+1, truncate(stmt, 50), ResetColor)
		}
		res.Close()
	}

	fmt.Printf("\n%s✓ Import complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)

	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		// Handle string literals
		if (ch == '\'' || ch == '"') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		// Handle comments
		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			// Skip to end of line
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		// Statement separator
		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	// Handle last statement without semicolon
	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
