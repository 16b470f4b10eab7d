package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows with a header line. Rows flagged in Muted are drawn in
// the muted color.
type Table struct {
	Headers []string
	Rows    [][]string
	Muted   map[int]bool
	Width   int
}

// NewTable creates a table with the given column headers
func NewTable(headers ...string) *Table {
	return &Table{
		Headers: headers,
		Muted:   make(map[int]bool),
		Width:   GetTerminalWidth(),
	}
}

// AddRow appends a row; muted rows are drawn in the muted color
func (t *Table) AddRow(muted bool, cells ...string) *Table {
	if muted {
		t.Muted[len(t.Rows)] = true
	}
	t.Rows = append(t.Rows, cells)
	return t
}

// Render returns the styled table as a string
func (t *Table) Render() string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case t.Muted[row]:
				return TableMutedCellStyle
			default:
				return TableCellStyle
			}
		}).
		Render()
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}
