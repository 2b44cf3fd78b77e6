package response

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		n    int
		want [][]string
	}{
		{
			name: "quoted rows",
			raw:  "\"A\",\"50%\"\n\"A\",\"60%\"\n\"B\",\"70%\"",
			n:    2,
			want: [][]string{{"A", "50%"}, {"A", "60%"}, {"B", "70%"}},
		},
		{
			name: "wrong arity dropped",
			raw:  "\"A\",\"1\",\"x\"\n\"B\",\"2\"\n\"C\"",
			n:    2,
			want: [][]string{{"B", "2"}},
		},
		{
			name: "example echo dropped",
			raw:  "\"EXAMPLE_COMPOUND_1\",\"3\"\n\"D\",\"4\"",
			n:    2,
			want: [][]string{{"D", "4"}},
		},
		{
			name: "exact duplicates collapse",
			raw:  "\"A\",\"1\"\n\"A\",\"1\"\n\"A\",\"2\"",
			n:    2,
			want: [][]string{{"A", "1"}, {"A", "2"}},
		},
		{
			name: "code fence and spacing",
			raw:  "```csv\n\"A\", \"1\"\n\"B\" ,\"2\"\n```",
			n:    2,
			want: [][]string{{"A", "1"}, {"B", "2"}},
		},
		{
			name: "unquoted values and embedded commas",
			raw:  "A, 1\n\"C, D\",2",
			n:    2,
			want: [][]string{{"A", "1"}, {"C, D", "2"}},
		},
		{
			name: "empty marker",
			raw:  "|||",
			n:    2,
		},
		{
			name: "nothing parses",
			raw:  "I could not find any data in this paper.",
			n:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, tt.n)
			assert.Equal(t, tt.want, got.Rows)
		})
	}
}

func TestParseCounts(t *testing.T) {
	res := Parse("\"A\",\"1\"\n\"A\",\"1\"\n\"EXAMPLE_X\",\"2\"\n\"x\"", 2)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Examples)
	assert.Equal(t, 1, res.WrongArity)
	assert.Len(t, res.Rows, 1)
}

func TestParseRowArityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "columns")
		lines := rapid.SliceOf(rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9 %.]{0,8}`), 1, 8)).Draw(t, "lines")
		var b strings.Builder
		for _, fields := range lines {
			quoted := make([]string, len(fields))
			for i, f := range fields {
				quoted[i] = `"` + f + `"`
			}
			b.WriteString(strings.Join(quoted, ",") + "\n")
		}
		res := Parse(b.String(), n)
		seen := map[string]bool{}
		for _, row := range res.Rows {
			if len(row) != n {
				t.Fatalf("row %q has %d fields, want %d", row, len(row), n)
			}
			key := strings.Join(row, "\x1f")
			if seen[key] {
				t.Fatalf("duplicate row %q", row)
			}
			seen[key] = true
		}
	})
}
