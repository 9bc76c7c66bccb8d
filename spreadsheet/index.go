// Package spreadsheet implements the two-axis lookup table that holds
// scenario test data: row names in the first column, test case names in
// the first row.
package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/shibukawa/snape2e"
)

// Entry is a named position on one axis of the table
type Entry struct {
	Name  string
	Index int
}

// Index answers "value at (row name, column name)" over a rectangular table.
// Cell lookups are relative to the currently selected column.
type Index struct {
	cells  [][]string
	rows   []Entry
	cols   []Entry
	column int
}

// New builds an index from table cells. Row 0 holds column names, column 0
// holds row names; blank names are skipped on both axes.
func New(cells [][]string) (*Index, error) {
	ix := &Index{cells: cells, column: -1}

	seen := make(map[string]bool)

	for r := 1; r < len(cells); r++ {
		if len(cells[r]) == 0 {
			continue
		}

		name := strings.TrimSpace(cells[r][0])
		if name == "" {
			continue
		}

		if seen[name] {
			return nil, fmt.Errorf("%w: row '%s'", snape2e.ErrDuplicateName, name)
		}

		seen[name] = true
		ix.rows = append(ix.rows, Entry{Name: name, Index: r})
	}

	if len(cells) > 0 {
		seen = make(map[string]bool)

		for c, cell := range cells[0] {
			name := strings.TrimSpace(cell)
			if name == "" {
				continue
			}

			if seen[name] {
				return nil, fmt.Errorf("%w: column '%s'", snape2e.ErrDuplicateName, name)
			}

			seen[name] = true
			ix.cols = append(ix.cols, Entry{Name: name, Index: c})
		}
	}

	return ix, nil
}

// Rows returns the row axis
func (ix *Index) Rows() []Entry {
	return append([]Entry(nil), ix.rows...)
}

// Cols returns the column axis
func (ix *Index) Cols() []Entry {
	return append([]Entry(nil), ix.cols...)
}

// Lookup returns the table row index for a row name
func (ix *Index) Lookup(rowName string) (int, error) {
	for _, row := range ix.rows {
		if row.Name == rowName {
			return row.Index, nil
		}
	}

	return -1, fmt.Errorf("%w: '%s'", snape2e.ErrRowNotFound, rowName)
}

// SelectColumn makes columnName the column all later lookups are relative to
func (ix *Index) SelectColumn(columnName string) error {
	for _, col := range ix.cols {
		if col.Name == columnName {
			ix.column = col.Index
			return nil
		}
	}

	return fmt.Errorf("%w: '%s'", snape2e.ErrColumnNotFound, columnName)
}

// Column returns the selected column index; ok is false when none is selected
func (ix *Index) Column() (int, bool) {
	return ix.column, ix.column >= 0
}

// CellAt returns the cell at (row, col). An empty or absent cell is null and
// reported with ok == false, so "no data" stays distinct from an expected empty string.
func (ix *Index) CellAt(row, col int) (value string, ok bool) {
	if row < 0 || row >= len(ix.cells) || col < 0 || col >= len(ix.cells[row]) {
		return "", false
	}

	value = ix.cells[row][col]
	if value == "" {
		return "", false
	}

	return value, true
}

// Value returns the raw cell for rowName in the selected column
func (ix *Index) Value(rowName string) (string, bool, error) {
	col, ok := ix.Column()
	if !ok {
		return "", false, snape2e.ErrNoColumnSelected
	}

	row, err := ix.Lookup(rowName)
	if err != nil {
		return "", false, err
	}

	value, ok := ix.CellAt(row, col)

	return value, ok, nil
}
