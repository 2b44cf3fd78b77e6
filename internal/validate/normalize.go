package validate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MorganRO8/LoA-sub000/constants"
)

var (
	reThousands = regexp.MustCompile(`(\d),(\d{3})\b`)
	reNumber    = regexp.MustCompile(`-?(?:\d+(?:\.\d+)?|\.\d+)`)
)

// IsNull reports whether a cell means "no value": empty, the literal null in any case, an
// empty quoted string, or a spelled-out "no information found" (quotes and punctuation
// ignored).
func IsNull(cell string) bool {
	c := strings.ToLower(strings.TrimSpace(cell))
	switch c {
	case "", constants.NullToken, `""`, "''":
		return true
	}
	stripped := strings.Join(strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, c)), " ")
	switch stripped {
	case "", constants.NullToken, "no information found":
		return true
	}
	return false
}

// NormalizeNull returns the literal null token for null-like cells and the trimmed cell
// otherwise.
func NormalizeNull(cell string) string {
	if IsNull(cell) {
		return constants.NullToken
	}
	return strings.TrimSpace(cell)
}

// numericToken pulls the single number out of a cell such as "~15 %" or "1,200 mg".
// Cells with no number or more than one are rejected.
func numericToken(cell string) (string, bool) {
	s := reThousands.ReplaceAllString(cell, "$1$2")
	matches := reNumber.FindAllString(s, -1)
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}
