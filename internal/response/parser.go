// Package response turns raw completion text into rows of untyped cells.
package response

import (
	"encoding/csv"
	"errors"
	"regexp"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
)

// ErrEmptyParse signals that a response yielded no usable rows. It is a retry signal, not
// a failure of the parser.
var ErrEmptyParse = errors.New("response contained no parsable rows")

// quoteGap matches whitespace between a closing quote and the next separator, which
// encoding/csv would otherwise fold into the quoted field.
var quoteGap = regexp.MustCompile(`"[ \t]+,`)

// Result is the outcome of parsing one response.
type Result struct {
	Rows [][]string

	// Counts of discarded records, for diagnostics.
	WrongArity int
	Examples   int
	Duplicates int
}

// Parse reads raw as a stream of quoted, comma-separated records and keeps those with
// exactly numColumns fields. Records that echo the example marker are dropped and exact
// duplicates collapse to their first occurrence. An empty Rows is a valid result.
func Parse(raw string, numColumns int) Result {
	var res Result
	seen := make(map[string]bool)
	for _, line := range strings.Split(stripCodeFence(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isEmptyMarker(line) {
			continue
		}
		record, ok := readRecord(line)
		if !ok {
			continue
		}
		if len(record) != numColumns {
			res.WrongArity++
			continue
		}
		if hasExampleMarker(record) {
			res.Examples++
			continue
		}
		key := strings.Join(record, "\x1f")
		if seen[key] {
			res.Duplicates++
			continue
		}
		seen[key] = true
		res.Rows = append(res.Rows, record)
	}
	return res
}

// readRecord parses one line. Lines are read independently so a stray quote in one row
// cannot swallow the rows after it.
func readRecord(line string) ([]string, bool) {
	line = quoteGap.ReplaceAllString(line, `",`)
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, false
	}
	for i, f := range record {
		record[i] = strings.TrimSpace(f)
	}
	return record, true
}

func isEmptyMarker(line string) bool {
	return strings.Trim(line, "\"' `") == constants.EmptyResultMarker
}

func hasExampleMarker(record []string) bool {
	for _, f := range record {
		if strings.Contains(f, constants.ExampleMarker) {
			return true
		}
	}
	return false
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	// Drop an info string such as "csv" on the opening fence line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], ",\"") {
		body = body[nl+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
