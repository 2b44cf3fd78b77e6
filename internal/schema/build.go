package schema

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
)

// Constraint keys accepted in every schema source format.
const (
	keyAllowedValues = "allowed_values"
	keyMinLength     = "min_length"
	keyMaxLength     = "max_length"
	keyMinValue      = "min_value"
	keyMaxValue      = "max_value"
	keyWhitelist     = "whitelist_substrings"
	keyBlacklist     = "blacklist_substrings"
)

var constraintAliases = map[string]string{
	"allowed":   keyAllowedValues,
	"values":    keyAllowedValues,
	"min":       keyMinValue,
	"max":       keyMaxValue,
	"whitelist": keyWhitelist,
	"blacklist": keyBlacklist,
}

var listKeys = []string{keyAllowedValues, keyWhitelist, keyBlacklist}

// applicable lists which constraint keys each column type accepts.
var applicable = map[constants.ColumnType][]string{
	constants.TypeString:  {keyAllowedValues, keyMinLength, keyMaxLength, keyWhitelist, keyBlacklist},
	constants.TypeInteger: {keyAllowedValues, keyMinValue, keyMaxValue},
	constants.TypeFloat:   {keyAllowedValues, keyMinValue, keyMaxValue},
	constants.TypeComplex: {keyAllowedValues},
	constants.TypeRange:   {keyAllowedValues, keyMinValue, keyMaxValue},
	constants.TypeBoolean: {},
}

// rawColumn is a column as read from any source format, before typing.
type rawColumn struct {
	Index       int
	HasIndex    bool
	Name        string
	Type        string
	Description string
	Line        int
	Constraints map[string][]string
}

func canonicalConstraintKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if alias, ok := constraintAliases[key]; ok {
		return alias
	}
	return key
}

func isListKey(key string) bool {
	return slices.Contains(listKeys, key)
}

// splitList splits a comma-separated authored list, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func build(raws []rawColumn, keyColumns []int) (*Schema, error) {
	columns := make([]Column, 0, len(raws))
	var warnings []string
	for _, r := range raws {
		if !r.HasIndex {
			return nil, &FormatError{Line: r.Line, Msg: "column block missing index"}
		}
		if strings.TrimSpace(r.Name) == "" {
			return nil, &FormatError{Column: r.Index, Line: r.Line, Msg: "column block missing name"}
		}
		if strings.TrimSpace(r.Type) == "" {
			return nil, &FormatError{Column: r.Index, Line: r.Line, Msg: "column block missing type"}
		}
		typ, ok := constants.CanonicalColumnType(r.Type)
		if !ok {
			return nil, &FormatError{
				Column: r.Index,
				Line:   r.Line,
				Msg:    fmt.Sprintf("unknown type %q (want one of %s)", r.Type, strings.Join(constants.ColumnTypeNames(), ", ")),
			}
		}
		kind, dropped := buildKind(typ, r.Constraints)
		for _, key := range dropped {
			warnings = append(warnings, fmt.Sprintf("column %d (%s): constraint %s does not apply to type %s", r.Index, r.Name, key, typ))
		}
		columns = append(columns, Column{
			Index:       r.Index,
			Name:        strings.TrimSpace(r.Name),
			Description: strings.TrimSpace(r.Description),
			Kind:        kind,
		})
	}
	s, err := New(columns, keyColumns)
	if err != nil {
		return nil, err
	}
	slices.Sort(warnings)
	s.Warnings = warnings
	return s, nil
}

// buildKind types the raw constraints for typ. Keys that do not apply to typ are returned
// as dropped; values that do not parse are treated as absent.
func buildKind(typ constants.ColumnType, raw map[string][]string) (Kind, []string) {
	var dropped []string
	valid := applicable[typ]
	get := func(key string) ([]string, bool) {
		v, ok := raw[key]
		return v, ok && len(v) > 0
	}
	for key := range raw {
		if !slices.Contains(valid, key) {
			dropped = append(dropped, key)
		}
	}
	slices.Sort(dropped)

	allowed, _ := get(keyAllowedValues)
	scalar := func(key string) string {
		if v, ok := get(key); ok {
			return v[0]
		}
		return ""
	}

	switch typ {
	case constants.TypeString:
		k := StringKind{AllowedValues: allowed}
		k.MinLength = parseIntPtr(scalar(keyMinLength))
		k.MaxLength = parseIntPtr(scalar(keyMaxLength))
		k.Whitelist, _ = get(keyWhitelist)
		k.Blacklist, _ = get(keyBlacklist)
		return k, dropped
	case constants.TypeInteger:
		return IntegerKind{
			AllowedValues: allowed,
			Min:           parseInt64Ptr(scalar(keyMinValue)),
			Max:           parseInt64Ptr(scalar(keyMaxValue)),
		}, dropped
	case constants.TypeFloat:
		return FloatKind{
			AllowedValues: allowed,
			Min:           parseFloatPtr(scalar(keyMinValue)),
			Max:           parseFloatPtr(scalar(keyMaxValue)),
		}, dropped
	case constants.TypeComplex:
		return ComplexKind{AllowedValues: allowed}, dropped
	case constants.TypeRange:
		return RangeKind{
			AllowedValues: allowed,
			Min:           parseFloatPtr(scalar(keyMinValue)),
			Max:           parseFloatPtr(scalar(keyMaxValue)),
		}, dropped
	default:
		return BooleanKind{}, dropped
	}
}

func parseIntPtr(s string) *int {
	v := parseInt64Ptr(s)
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func parseInt64Ptr(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= 0x1p63 {
		return nil
	}
	n := int64(f)
	return &n
}

func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseKeyColumns(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("key column %q is not an integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}
