package main

import (
	"fmt"
	"io"
	"strings"
)

// Table renders query results as an ASCII grid. Rows are collected first
// and printed in one pass, so each column is sized to its widest cell.
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	widths  []int
}

func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

// Header sets the column headers.
func (t *Table) Header(headers []string) {
	t.headers = headers
	t.grow(headers)
}

// Row appends one data row.
func (t *Table) Row(row []string) {
	t.rows = append(t.rows, row)
	t.grow(row)
}

// grow tracks the widest cell seen per column.
func (t *Table) grow(cells []string) {
	for i, cell := range cells {
		for len(t.widths) <= i {
			t.widths = append(t.widths, 1)
		}
		if len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
}

// Render writes the grid. An empty table writes nothing.
func (t *Table) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}
	sep := t.separator()
	fmt.Fprintln(t.w, sep)
	if len(t.headers) > 0 {
		t.line(t.headers)
		fmt.Fprintln(t.w, sep)
	}
	for _, row := range t.rows {
		t.line(row)
	}
	fmt.Fprintln(t.w, sep)
}

func (t *Table) separator() string {
	var b strings.Builder
	for _, w := range t.widths {
		b.WriteString("+")
		b.WriteString(strings.Repeat("-", w+2))
	}
	b.WriteString("+")
	return b.String()
}

func (t *Table) line(cells []string) {
	var b strings.Builder
	for i, w := range t.widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		fmt.Fprintf(&b, "| %-*s ", w, cell)
	}
	b.WriteString("|")
	fmt.Fprintln(t.w, b.String())
}
