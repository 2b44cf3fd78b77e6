package validate

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MorganRO8/LoA-sub000/internal/schema"
)

// cellValidator checks and coerces one non-null cell. It is chosen once per column.
type cellValidator interface {
	validate(value string) (string, *CellError)
}

func newCellValidator(col schema.Column, strict bool) cellValidator {
	base := cellBase{index: col.Index, name: col.Name}
	switch k := col.Kind.(type) {
	case schema.StringKind:
		return stringValidator{cellBase: base, kind: k}
	case schema.IntegerKind:
		return integerValidator{cellBase: base, kind: k}
	case schema.FloatKind:
		return floatValidator{cellBase: base, kind: k}
	case schema.ComplexKind:
		return complexValidator{cellBase: base, kind: k}
	case schema.RangeKind:
		return rangeValidator{cellBase: base, kind: k, strict: strict}
	default:
		return booleanValidator{cellBase: base, strict: strict}
	}
}

type cellBase struct {
	index int
	name  string
}

func (b cellBase) reject(value, constraint, reason string) *CellError {
	return &CellError{Column: b.index, Name: b.name, Value: value, Constraint: constraint, Reason: reason}
}

type stringValidator struct {
	cellBase
	kind schema.StringKind
}

// Allowed values are exclusive: when present, length and substring rules are not applied.
func (v stringValidator) validate(value string) (string, *CellError) {
	if len(v.kind.AllowedValues) > 0 {
		if !slices.Contains(v.kind.AllowedValues, value) {
			return "", v.reject(value, "allowed_values", "not one of "+strings.Join(v.kind.AllowedValues, ", "))
		}
		return value, nil
	}
	n := utf8.RuneCountInString(value)
	if v.kind.MinLength != nil && n < *v.kind.MinLength {
		return "", v.reject(value, "min_length", "shorter than "+strconv.Itoa(*v.kind.MinLength))
	}
	if v.kind.MaxLength != nil && n > *v.kind.MaxLength {
		return "", v.reject(value, "max_length", "longer than "+strconv.Itoa(*v.kind.MaxLength))
	}
	if len(v.kind.Whitelist) > 0 && !slices.ContainsFunc(v.kind.Whitelist, func(s string) bool {
		return strings.Contains(value, s)
	}) {
		return "", v.reject(value, "whitelist_substrings", "contains none of "+strings.Join(v.kind.Whitelist, ", "))
	}
	for _, s := range v.kind.Blacklist {
		if strings.Contains(value, s) {
			return "", v.reject(value, "blacklist_substrings", "contains "+strconv.Quote(s))
		}
	}
	return value, nil
}

type integerValidator struct {
	cellBase
	kind schema.IntegerKind
}

func (v integerValidator) validate(value string) (string, *CellError) {
	tok, ok := numericToken(value)
	if !ok {
		return "", v.reject(value, "type", "not a single integer")
	}
	n, ok := parseInteger(tok)
	if !ok {
		return "", v.reject(value, "type", "not an integer")
	}
	out := strconv.FormatInt(n, 10)
	if len(v.kind.AllowedValues) > 0 && !slices.Contains(v.kind.AllowedValues, out) {
		return "", v.reject(value, "allowed_values", "not one of "+strings.Join(v.kind.AllowedValues, ", "))
	}
	if v.kind.Min != nil && n < *v.kind.Min {
		return "", v.reject(value, "min_value", "below "+strconv.FormatInt(*v.kind.Min, 10))
	}
	if v.kind.Max != nil && n > *v.kind.Max {
		return "", v.reject(value, "max_value", "above "+strconv.FormatInt(*v.kind.Max, 10))
	}
	return out, nil
}

// parseInteger reads tok exactly. Decimal or exponent forms such as "7.0" are accepted
// only while they stay within the float64 exact-integer range.
func parseInteger(tok string) (int64, bool) {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err == nil {
		return n, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return 0, false
	}
	return int64(f), true
}

type floatValidator struct {
	cellBase
	kind schema.FloatKind
}

func (v floatValidator) validate(value string) (string, *CellError) {
	tok, ok := numericToken(value)
	if !ok {
		return "", v.reject(value, "type", "not a single number")
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return "", v.reject(value, "type", "not a number")
	}
	if len(v.kind.AllowedValues) > 0 && !slices.Contains(v.kind.AllowedValues, tok) {
		return "", v.reject(value, "allowed_values", "not one of "+strings.Join(v.kind.AllowedValues, ", "))
	}
	if errc := checkBounds(v.cellBase, value, f, v.kind.Min, v.kind.Max); errc != nil {
		return "", errc
	}
	return tok, nil
}

type complexValidator struct {
	cellBase
	kind schema.ComplexKind
}

func (v complexValidator) validate(value string) (string, *CellError) {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+', r == '-', r == '.', r == 'i', r == 'j':
			return r
		}
		return -1
	}, value)
	if out == "" {
		return "", v.reject(value, "type", "no complex number characters")
	}
	if len(v.kind.AllowedValues) > 0 && !slices.Contains(v.kind.AllowedValues, out) {
		return "", v.reject(value, "allowed_values", "not one of "+strings.Join(v.kind.AllowedValues, ", "))
	}
	return out, nil
}

type rangeValidator struct {
	cellBase
	kind   schema.RangeKind
	strict bool
}

// Bounds are kept in the order given. Malformed ranges pass through unchanged unless
// strict.
func (v rangeValidator) validate(value string) (string, *CellError) {
	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return v.malformed(value)
	}
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLo != nil || errHi != nil {
		return v.malformed(value)
	}
	out := strings.TrimSpace(parts[0]) + "-" + strings.TrimSpace(parts[1])
	if len(v.kind.AllowedValues) > 0 && !slices.Contains(v.kind.AllowedValues, out) {
		return "", v.reject(value, "allowed_values", "not one of "+strings.Join(v.kind.AllowedValues, ", "))
	}
	for _, f := range []float64{lo, hi} {
		if errc := checkBounds(v.cellBase, value, f, v.kind.Min, v.kind.Max); errc != nil {
			return "", errc
		}
	}
	return out, nil
}

func (v rangeValidator) malformed(value string) (string, *CellError) {
	if v.strict {
		return "", v.reject(value, "type", "not a min-max range")
	}
	return value, nil
}

type booleanValidator struct {
	cellBase
	strict bool
}

func (v booleanValidator) validate(value string) (string, *CellError) {
	lower := strings.ToLower(value)
	hasTrue := strings.Contains(lower, "true")
	hasFalse := strings.Contains(lower, "false")
	switch {
	case hasTrue && !hasFalse:
		return "true", nil
	case hasFalse && !hasTrue:
		return "false", nil
	}
	if v.strict {
		return "", v.reject(value, "type", "not true or false")
	}
	return value, nil
}

func checkBounds(b cellBase, value string, f float64, min, max *float64) *CellError {
	if min != nil && f < *min {
		return b.reject(value, "min_value", "below "+strconv.FormatFloat(*min, 'g', -1, 64))
	}
	if max != nil && f > *max {
		return b.reject(value, "max_value", "above "+strconv.FormatFloat(*max, 'g', -1, 64))
	}
	return nil
}
