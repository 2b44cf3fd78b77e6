package schema

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorganRO8/LoA-sub000/constants"
)

const blockSchema = `
# reaction yields
key_columns: 1

column: 1
name: compound
type: str
description: Name of the compound

column: 2
name: yield
type: string
description: Reported yield
max_length: 10
min_value: 3

column: 3
name: temperature
type: number
min_value: -50
max_value: abc

column: 4
name: catalyst
type: string
allowed_values: Pd, "Ni", Cu
`

func TestParseBlock(t *testing.T) {
	s, err := Parse(strings.NewReader(blockSchema))
	require.NoError(t, err)

	assert.Equal(t, 4, s.NumColumns())
	assert.Equal(t, []int{1}, s.KeyColumns())
	assert.Equal(t, []string{"compound", "yield", "temperature", "catalyst", "document_id"}, s.Header())

	c1, ok := s.Column(1)
	require.True(t, ok)
	assert.Equal(t, constants.TypeString, c1.Type())
	assert.Equal(t, "Name of the compound", c1.Description)

	c2, _ := s.Column(2)
	sk, ok := c2.Kind.(StringKind)
	require.True(t, ok)
	require.NotNil(t, sk.MaxLength)
	assert.Equal(t, 10, *sk.MaxLength)
	assert.Nil(t, sk.MinLength)

	c3, _ := s.Column(3)
	fk, ok := c3.Kind.(FloatKind)
	require.True(t, ok)
	require.NotNil(t, fk.Min)
	assert.Equal(t, -50.0, *fk.Min)
	assert.Nil(t, fk.Max, "unparsable bound is treated as absent")

	c4, _ := s.Column(4)
	assert.Equal(t, []string{"Pd", "Ni", "Cu"}, c4.AllowedValues())

	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "min_value")
	assert.Contains(t, s.Warnings[0], "column 2")
}

func TestParseBlockErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing type", "column: 1\nname: a\n", "missing type"},
		{"missing name", "column: 1\ntype: int\n", "missing name"},
		{"unknown type", "column: 1\nname: a\ntype: decimalish\n", "unknown type"},
		{"gap in indexes", "column: 1\nname: a\ntype: int\ncolumn: 3\nname: b\ntype: int\n", "contiguous"},
		{"duplicate index", "column: 1\nname: a\ntype: int\ncolumn: 1\nname: b\ntype: int\n", "duplicate column index"},
		{"key out of range", "key_columns: 2\ncolumn: 1\nname: a\ntype: int\n", "out of range"},
		{"key not integer", "key_columns: first\ncolumn: 1\nname: a\ntype: int\n", "not an integer"},
		{"key outside block", "name: a\n", "outside a column block"},
		{"no colon", "column: 1\nname a\n", "expected 'key: value'"},
		{"empty", "# nothing\n", "no columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want FormatError, got %T", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseBlockReportsLine(t *testing.T) {
	_, err := Parse(strings.NewReader("column: 1\nname: a\ntype: int\n\ncolumn: x\n"))
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 5, fe.Line)
}

func TestParseKindsPerType(t *testing.T) {
	src := `column: 1
name: count
type: integer
min_value: 0
max_value: 10.0
column: 2
name: impedance
type: complex
allowed_values: 1+2j
column: 3
name: range
type: range
min: 1
max: 5
column: 4
name: flag
type: boolean
allowed_values: true
`
	s, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	ik := s.columns[0].Kind.(IntegerKind)
	require.NotNil(t, ik.Min)
	require.NotNil(t, ik.Max)
	assert.Equal(t, int64(0), *ik.Min)
	assert.Equal(t, int64(10), *ik.Max)

	assert.Equal(t, []string{"1+2j"}, s.columns[1].Kind.(ComplexKind).AllowedValues)

	rk := s.columns[2].Kind.(RangeKind)
	assert.Equal(t, 1.0, *rk.Min)
	assert.Equal(t, 5.0, *rk.Max)

	assert.IsType(t, BooleanKind{}, s.columns[3].Kind)
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "allowed_values")
}

func TestParseInt64Bounds(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"-9000000000000000000", ptrInt64(-9_000_000_000_000_000_000)},
		{"9223372036854775807", ptrInt64(math.MaxInt64)},
		{"1e3", ptrInt64(1000)},
		{"1e19", nil},
		{"-1e19", nil},
		{"9.3e18", nil},
		{"1.5", nil},
		{"", nil},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, parseInt64Ptr(tc.in))
		})
	}
}

func ptrInt64(n int64) *int64 { return &n }

func TestParseJSON(t *testing.T) {
	src := `{
  "key_columns": [1],
  "columns": [
    {"index": 2, "name": "yield", "type": "float", "min_value": 0, "max_value": 100},
    {"index": 1, "name": "compound", "type": "string", "description": "Name", "allowed_values": ["A", "B"]}
  ]
}`
	s, err := ParseJSON(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"compound", "yield"}, s.Names())
	assert.Equal(t, []int{1}, s.KeyColumns())
	assert.Equal(t, []string{"A", "B"}, s.columns[0].AllowedValues())
	fk := s.columns[1].Kind.(FloatKind)
	assert.Equal(t, 100.0, *fk.Max)
}

func TestParseJSONRejectsStructure(t *testing.T) {
	tests := map[string]string{
		"no columns":     `{"key_columns": [1]}`,
		"missing name":   `{"columns": [{"index": 1, "type": "string"}]}`,
		"index not int":  `{"columns": [{"index": "one", "name": "a", "type": "string"}]}`,
		"empty columns":  `{"columns": []}`,
		"not an object":  `[1, 2]`,
		"malformed json": `{"columns": [`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON(strings.NewReader(src))
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
		})
	}
}

func TestParseYAML(t *testing.T) {
	src := `
key_columns: "1"
columns:
  - index: 1
    name: compound
    type: text
    whitelist: "ine, ol"
  - index: 2
    name: yield
    type: int
    min_value: 0
    max_value: 100
`
	s, err := ParseYAML(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, s.KeyColumns())
	sk := s.columns[0].Kind.(StringKind)
	assert.Equal(t, []string{"ine", "ol"}, sk.Whitelist)
	ik := s.columns[1].Kind.(IntegerKind)
	assert.Equal(t, int64(100), *ik.Max)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"schema.txt":  "column: 1\nname: a\ntype: int\n",
		"schema.json": `{"columns": [{"index": 1, "name": "a", "type": "int"}]}`,
		"schema.yml":  "columns:\n  - index: 1\n    name: a\n    type: int\n",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		s, err := Load(path, nil)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"a"}, s.Names(), name)
	}

	_, err := Load(filepath.Join(dir, "missing.txt"), nil)
	require.Error(t, err)
}

func TestNewValidatesColumns(t *testing.T) {
	_, err := New([]Column{{Index: 1, Name: "a"}}, nil)
	assert.ErrorContains(t, err, "missing type")

	s, err := New([]Column{
		{Index: 2, Name: "b", Kind: BooleanKind{}},
		{Index: 1, Name: "a", Kind: StringKind{}},
	}, []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, []int{1}, s.KeyColumns())
}
