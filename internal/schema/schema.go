// Package schema models the user-defined column schema that drives extraction.
//
// A Schema is an ordered set of columns, each carrying a closed Kind variant that holds
// only the constraints valid for its type. Schemas are immutable once loaded.
package schema

import (
	"fmt"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
)

// Kind is the sealed per-type variant of a column. Implementations are the *Kind types in
// this package; the constraint fields each one carries are the only ones valid for it.
type Kind interface {
	Type() constants.ColumnType
	isKind()
}

// StringKind constrains free-text columns.
type StringKind struct {
	AllowedValues []string
	MinLength     *int
	MaxLength     *int
	Whitelist     []string // at least one must appear in the value
	Blacklist     []string // none may appear in the value
}

// IntegerKind constrains whole-number columns. Bounds are inclusive.
type IntegerKind struct {
	AllowedValues []string
	Min           *int64
	Max           *int64
}

// FloatKind constrains real-number columns. Bounds are inclusive.
type FloatKind struct {
	AllowedValues []string
	Min           *float64
	Max           *float64
}

// ComplexKind holds complex-number columns.
type ComplexKind struct {
	AllowedValues []string
}

// RangeKind holds "min-max" columns. Bounds only shape generated examples.
type RangeKind struct {
	AllowedValues []string
	Min           *float64
	Max           *float64
}

// BooleanKind holds true/false columns.
type BooleanKind struct{}

func (StringKind) Type() constants.ColumnType  { return constants.TypeString }
func (IntegerKind) Type() constants.ColumnType { return constants.TypeInteger }
func (FloatKind) Type() constants.ColumnType   { return constants.TypeFloat }
func (ComplexKind) Type() constants.ColumnType { return constants.TypeComplex }
func (RangeKind) Type() constants.ColumnType   { return constants.TypeRange }
func (BooleanKind) Type() constants.ColumnType { return constants.TypeBoolean }

func (StringKind) isKind()  {}
func (IntegerKind) isKind() {}
func (FloatKind) isKind()   {}
func (ComplexKind) isKind() {}
func (RangeKind) isKind()   {}
func (BooleanKind) isKind() {}

// Column is one schema column.
type Column struct {
	Index       int // 1-based, contiguous
	Name        string
	Description string
	Kind        Kind
}

// Type returns the column's declared type.
func (c Column) Type() constants.ColumnType {
	if c.Kind == nil {
		return ""
	}
	return c.Kind.Type()
}

// AllowedValues returns the enumerated values of the column, if any.
func (c Column) AllowedValues() []string {
	switch k := c.Kind.(type) {
	case StringKind:
		return k.AllowedValues
	case IntegerKind:
		return k.AllowedValues
	case FloatKind:
		return k.AllowedValues
	case ComplexKind:
		return k.AllowedValues
	case RangeKind:
		return k.AllowedValues
	}
	return nil
}

// Schema is an ordered list of columns plus the key columns used for in-document dedup.
type Schema struct {
	columns    []Column
	keyColumns []int

	// Warnings lists constraints that were dropped because they do not apply to the
	// column's type.
	Warnings []string
}

// New builds a Schema and checks its invariants: indexes contiguous from 1 and unique,
// names and kinds present, key columns in range.
func New(columns []Column, keyColumns []int) (*Schema, error) {
	if len(columns) == 0 {
		return nil, &FormatError{Msg: "schema has no columns"}
	}
	ordered := make([]Column, len(columns))
	seen := make(map[int]bool, len(columns))
	for _, c := range columns {
		if c.Index < 1 || c.Index > len(columns) {
			return nil, &FormatError{Column: c.Index, Msg: fmt.Sprintf("column indexes must be contiguous from 1 to %d", len(columns))}
		}
		if seen[c.Index] {
			return nil, &FormatError{Column: c.Index, Msg: "duplicate column index"}
		}
		seen[c.Index] = true
		if strings.TrimSpace(c.Name) == "" {
			return nil, &FormatError{Column: c.Index, Msg: "missing name"}
		}
		if c.Kind == nil {
			return nil, &FormatError{Column: c.Index, Msg: "missing type"}
		}
		ordered[c.Index-1] = c
	}

	keys := make([]int, 0, len(keyColumns))
	seenKey := make(map[int]bool, len(keyColumns))
	for _, k := range keyColumns {
		if k < 1 || k > len(columns) {
			return nil, &FormatError{Msg: fmt.Sprintf("key column %d out of range 1..%d", k, len(columns))}
		}
		if seenKey[k] {
			continue
		}
		seenKey[k] = true
		keys = append(keys, k)
	}
	return &Schema{columns: ordered, keyColumns: keys}, nil
}

// Columns returns the columns in index order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Column returns the column with the given 1-based index.
func (s *Schema) Column(index int) (Column, bool) {
	if index < 1 || index > len(s.columns) {
		return Column{}, false
	}
	return s.columns[index-1], true
}

// NumColumns returns the number of data columns.
func (s *Schema) NumColumns() int {
	return len(s.columns)
}

// KeyColumns returns the 1-based key column indexes, possibly empty.
func (s *Schema) KeyColumns() []int {
	out := make([]int, len(s.keyColumns))
	copy(out, s.keyColumns)
	return out
}

// Names returns the column names in index order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Header returns the result-table header: column names then the document id column.
func (s *Schema) Header() []string {
	return append(s.Names(), constants.DocumentIDHeader)
}

// FormatError is returned when a schema source is malformed. It aborts a run before any
// document is processed.
type FormatError struct {
	Column int // 0 when the problem is not tied to a column
	Line   int // 0 when the source is not line-oriented
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("schema format")
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Column > 0 {
		fmt.Fprintf(&b, " column %d", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }
