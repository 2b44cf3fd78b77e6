package constants

import (
	"strings"
)

type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeComplex ColumnType = "complex"
	TypeRange   ColumnType = "range"
	TypeBoolean ColumnType = "boolean"
)

var allColumnTypes = []ColumnType{
	TypeString,
	TypeInteger,
	TypeFloat,
	TypeComplex,
	TypeRange,
	TypeBoolean,
}

func ColumnTypeNames() []string {
	result := make([]string, len(allColumnTypes))
	for i, t := range allColumnTypes {
		result[i] = string(t)
	}
	return result
}

// CanonicalColumnType maps an authored type name (including common synonyms) to a ColumnType.
func CanonicalColumnType(input string) (ColumnType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]ColumnType{
		"str":     TypeString,
		"text":    TypeString,
		"int":     TypeInteger,
		"number":  TypeFloat,
		"double":  TypeFloat,
		"decimal": TypeFloat,
		"bool":    TypeBoolean,
		"cplx":    TypeComplex,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allColumnTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}
