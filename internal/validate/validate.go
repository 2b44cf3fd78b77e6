// Package validate coerces parsed cells to their column types, rejects rows that break a
// constraint and deduplicates rows by key columns.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/common"
	"github.com/MorganRO8/LoA-sub000/internal/schema"
)

// ErrEmptyValidation signals that no row survived validation. Like an empty parse it is
// a retry signal.
var ErrEmptyValidation = fmt.Errorf("no rows survived validation: %w", common.ErrValidation)

// CellError describes one cell that broke a column constraint. It rejects its row and is
// never escalated further.
type CellError struct {
	Column     int
	Name       string
	Value      string
	Constraint string
	Reason     string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("column %d (%s): value %q violates %s: %s", e.Column, e.Name, e.Value, e.Constraint, e.Reason)
}

// Options tune a Validator.
type Options struct {
	// StrictTypes rejects malformed range and boolean cells instead of passing them
	// through unchanged.
	StrictTypes bool
	Logger      *slog.Logger
}

// Rejection is a row dropped because of a cell error.
type Rejection struct {
	Row []string
	Err *CellError
}

// Result is the outcome of validating one response's rows.
type Result struct {
	Rows       [][]string
	Rejected   []Rejection
	Headers    int
	Examples   int
	Duplicates int
}

// Validator holds one compiled cell validator per column.
type Validator struct {
	cells      []cellValidator
	names      []string
	keyColumns []int
	logger     *slog.Logger
}

// Compile selects the per-column validators for s once.
func Compile(s *schema.Schema, opts Options) *Validator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cols := s.Columns()
	cells := make([]cellValidator, len(cols))
	for i, col := range cols {
		cells[i] = newCellValidator(col, opts.StrictTypes)
	}
	return &Validator{
		cells:      cells,
		names:      s.Names(),
		keyColumns: s.KeyColumns(),
		logger:     logger,
	}
}

// Validate normalizes and checks every row, drops header echoes and example leaks, then
// keeps the first row for each key-column value. An empty Result.Rows is not an error.
func (v *Validator) Validate(rows [][]string, examples [][]string) Result {
	var res Result
	exampleText := make(map[string]bool, len(examples))
	for _, ex := range examples {
		exampleText[strings.Join(ex, ",")] = true
	}

	valid := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(v.cells) {
			continue
		}
		if v.isHeader(row) {
			res.Headers++
			continue
		}
		if exampleText[joinTrimmed(row)] {
			res.Examples++
			continue
		}
		out, cellErr := v.validateRow(row)
		if cellErr != nil {
			v.logger.Debug("validate.cell.rejected",
				"column", cellErr.Column,
				"name", cellErr.Name,
				"value", cellErr.Value,
				"constraint", cellErr.Constraint,
				"reason", cellErr.Reason,
			)
			res.Rejected = append(res.Rejected, Rejection{Row: row, Err: cellErr})
			continue
		}
		valid = append(valid, out)
	}

	res.Rows, res.Duplicates = Dedup(valid, v.keyColumns)
	return res
}

func (v *Validator) validateRow(row []string) ([]string, *CellError) {
	out := make([]string, len(row))
	for i, cell := range row {
		cell = NormalizeNull(cell)
		if cell == constants.NullToken {
			out[i] = cell
			continue
		}
		coerced, err := v.cells[i].validate(cell)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

func (v *Validator) isHeader(row []string) bool {
	for i, cell := range row {
		if !strings.EqualFold(strings.TrimSpace(cell), v.names[i]) {
			return false
		}
	}
	return true
}

// Dedup keeps the first row for each distinct combination of key column values (1-based
// indexes). With no key columns rows are returned unchanged.
func Dedup(rows [][]string, keyColumns []int) ([][]string, int) {
	if len(keyColumns) == 0 {
		return rows, 0
	}
	seen := make(map[string]bool, len(rows))
	out := make([][]string, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		parts := make([]string, len(keyColumns))
		for i, k := range keyColumns {
			if k >= 1 && k <= len(row) {
				parts[i] = row[k-1]
			}
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out, dropped
}

func joinTrimmed(row []string) string {
	trimmed := make([]string, len(row))
	for i, c := range row {
		trimmed[i] = strings.TrimSpace(c)
	}
	return strings.Join(trimmed, ",")
}
