package schema

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads the line-oriented block format:
//
//	key_columns: 1
//	column: 1
//	name: compound
//	type: string
//	description: Name of the compound
//	allowed_values: a, b
//
// Lines starting with '#' are comments. "column: N" opens a new block; every following
// key belongs to that block until the next one. key_columns may appear anywhere.
func Parse(r io.Reader) (*Schema, error) {
	var (
		raws    []rawColumn
		current *rawColumn
		keys    []int
	)
	flush := func() {
		if current != nil {
			raws = append(raws, *current)
			current = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("expected 'key: value', got %q", line)}
		}
		key = canonicalConstraintKey(key)
		value = strings.TrimSpace(value)

		switch key {
		case "key_columns", "key_column", "keys":
			parsed, err := parseKeyColumns(value)
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: err.Error()}
			}
			keys = append(keys, parsed...)
			continue
		case "column", "column_number", "index":
			flush()
			idx, err := strconv.Atoi(value)
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("column index %q is not an integer", value)}
			}
			current = &rawColumn{Index: idx, HasIndex: true, Line: lineNo, Constraints: map[string][]string{}}
			continue
		}

		if current == nil {
			return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("key %q outside a column block", key)}
		}
		switch key {
		case "name":
			current.Name = value
		case "type":
			current.Type = value
		case "description":
			current.Description = value
		default:
			if value == "" {
				continue
			}
			if isListKey(key) {
				current.Constraints[key] = append(current.Constraints[key], splitList(value)...)
			} else {
				current.Constraints[key] = []string{value}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	flush()
	return build(raws, keys)
}
