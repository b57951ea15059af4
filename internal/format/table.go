// Package format renders validation, inference and run reports as terminal
// or Markdown tables.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects the table renderer.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal table
	Markdown             // GitHub pipe table
)

// ParseMode maps an --output value to a Mode. "json" is handled by callers.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "table", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown table format %q (want table or markdown)", s)
}

// ColumnConfig tunes one column. Number is 1-based.
type ColumnConfig struct {
	Number   int
	Right    bool // right-align, for counts
	MaxWidth int  // wrap beyond this width; 0 means unlimited
}

// Table collects rows and renders them in one Mode.
type Table struct {
	w    table.Writer
	mode Mode
	rows int
}

// NewTable returns an empty table for m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m}
}

// Title sets a caption above the table.
func (t *Table) Title(s string) { t.w.SetTitle(s) }

func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.w.AppendHeader(row)
}

// Row appends a data row; values are printed with fmt.Sprint.
func (t *Table) Row(vals ...any) {
	t.w.AppendRow(table.Row(vals))
	t.rows++
}

func (t *Table) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

// Len is the number of data rows.
func (t *Table) Len() int { return t.rows }

func (t *Table) Columns(cfgs ...ColumnConfig) {
	out := make([]table.ColumnConfig, 0, len(cfgs))
	for _, c := range cfgs {
		cc := table.ColumnConfig{Number: c.Number, WidthMax: c.MaxWidth}
		if c.Right {
			cc.Align = text.AlignRight
		}
		out = append(out, cc)
	}
	t.w.SetColumnConfigs(out)
}

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}
