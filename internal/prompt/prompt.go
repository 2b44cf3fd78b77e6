// Package prompt builds the extraction and pre-check prompts from a schema.
package prompt

import (
	"strconv"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/schema"
)

// ExampleRows is how many synthetic rows feed the worked examples (1 + 2 + 3).
const ExampleRows = 6

const defaultTargetType = "paper"

// Params carries everything besides the schema that shapes a prompt.
type Params struct {
	Instructions   string
	TargetType     string
	KeyColumns     []int
	Examples       [][]string
	ImagesWithheld bool
}

// Prompts is the immutable pair of templates built once per run.
type Prompts struct {
	Check      string
	Extraction string
	Examples   [][]string
}

// Build generates examples from seed and returns both prompts. Key columns come from the
// schema.
func Build(s *schema.Schema, instructions, targetType string, seed int64, imagesWithheld bool) Prompts {
	p := Params{
		Instructions:   instructions,
		TargetType:     targetType,
		KeyColumns:     s.KeyColumns(),
		Examples:       GenerateExamples(s, ExampleRows, seed),
		ImagesWithheld: imagesWithheld,
	}
	return Prompts{
		Check:      BuildCheckPrompt(s, p),
		Extraction: BuildExtractionPrompt(s, p),
		Examples:   p.Examples,
	}
}

// WithDocument appends the document text to a prompt template.
func WithDocument(prompt, text string) string {
	return prompt + strings.TrimSpace(text) + "\n"
}

// BuildExtractionPrompt renders the full extraction template. The document text is not
// included; callers append it with WithDocument.
func BuildExtractionPrompt(s *schema.Schema, p Params) string {
	target := targetOf(p)
	n := s.NumColumns()

	var b strings.Builder
	b.WriteString("You are extracting structured data from a scientific " + target + ".\n")
	b.WriteString("Extract the following columns:\n")
	writeColumns(&b, s)

	if keys := keyNames(s, p.KeyColumns); len(keys) > 0 {
		b.WriteString("\nEach row must have a unique value for " + strings.Join(keys, ", ") +
			". Never output two rows that share the same value")
		if len(keys) > 1 {
			b.WriteString("s in these columns")
		} else {
			b.WriteString(" in this column")
		}
		b.WriteString(".\n")
	}

	b.WriteString("\nOutput format rules:\n")
	rules := []string{
		"Output one row per line with values separated by commas.",
		"Every row must have exactly " + strconv.Itoa(n) + " fields, in the column order above.",
		"Enclose every value in double quotes, as a string.",
		"If a value is not present in the " + target + ", write " + constants.NullToken + " for it.",
		"Write ranges as min-max, for example \"1-5\".",
		"Ignore the references section of the " + target + ".",
		"If the " + target + " contains none of the requested data, respond with only " + constants.EmptyResultMarker + ".",
		"Output only the rows: no header, no numbering, no commentary.",
	}
	for _, r := range rules {
		b.WriteString("- " + r + "\n")
	}

	b.WriteString("\nFormat:\n")
	b.WriteString(quoteRow(s.Names()) + "\n")

	examples := p.Examples
	offset := 0
	for count := 1; count <= 3; count++ {
		if offset+count > len(examples) {
			break
		}
		b.WriteString("\nExample with " + strconv.Itoa(count) + " row")
		if count > 1 {
			b.WriteString("s")
		}
		b.WriteString(":\n")
		for _, row := range examples[offset : offset+count] {
			b.WriteString(quoteRow(row) + "\n")
		}
		offset += count
	}
	if len(examples) > 0 {
		b.WriteString("\nThe example values are invented and only show the format. Never copy them into your answer.\n")
	}

	writeInstructions(&b, p.Instructions)
	b.WriteString("\nHere is the " + target + ":\n")
	return b.String()
}

// BuildCheckPrompt renders the cheap yes/no screening template.
func BuildCheckPrompt(s *schema.Schema, p Params) string {
	target := targetOf(p)

	var b strings.Builder
	b.WriteString("You are screening a scientific " + target + " before a detailed data extraction.\n")
	b.WriteString("The extraction looks for the following columns:\n")
	writeColumns(&b, s)
	writeInstructions(&b, p.Instructions)
	if p.ImagesWithheld {
		b.WriteString("\nImages and figures from the " + target + " are not shown at this stage; judge from the text alone.\n")
	}
	b.WriteString("\nDoes this " + target + " likely contain any of the information described above? " +
		"Answer only yes or no.\n")
	b.WriteString("\nHere is the " + target + ":\n")
	return b.String()
}

func writeColumns(b *strings.Builder, s *schema.Schema) {
	for _, col := range s.Columns() {
		b.WriteString(strconv.Itoa(col.Index) + ". " + col.Name + " (" + string(col.Type()) + ")")
		if d := strings.TrimSpace(col.Description); d != "" {
			b.WriteString(": " + d)
		}
		if hint := constraintHint(col); hint != "" {
			b.WriteString(" [" + hint + "]")
		}
		b.WriteString("\n")
	}
}

func constraintHint(col schema.Column) string {
	var parts []string
	if allowed := col.AllowedValues(); len(allowed) > 0 {
		parts = append(parts, "one of: "+strings.Join(allowed, ", "))
	}
	switch k := col.Kind.(type) {
	case schema.IntegerKind:
		if k.Min != nil {
			parts = append(parts, "min "+strconv.FormatInt(*k.Min, 10))
		}
		if k.Max != nil {
			parts = append(parts, "max "+strconv.FormatInt(*k.Max, 10))
		}
	case schema.FloatKind:
		parts = appendFloatBounds(parts, k.Min, k.Max)
	case schema.RangeKind:
		parts = appendFloatBounds(parts, k.Min, k.Max)
	case schema.BooleanKind:
		parts = append(parts, "true or false")
	}
	return strings.Join(parts, "; ")
}

func appendFloatBounds(parts []string, min, max *float64) []string {
	if min != nil {
		parts = append(parts, "min "+strconv.FormatFloat(*min, 'g', -1, 64))
	}
	if max != nil {
		parts = append(parts, "max "+strconv.FormatFloat(*max, 'g', -1, 64))
	}
	return parts
}

func writeInstructions(b *strings.Builder, instructions string) {
	if ins := strings.TrimSpace(instructions); ins != "" {
		b.WriteString("\nAdditional instructions:\n" + ins + "\n")
	}
}

func keyNames(s *schema.Schema, keys []int) []string {
	var names []string
	for _, k := range keys {
		if col, ok := s.Column(k); ok {
			names = append(names, col.Name)
		}
	}
	return names
}

func targetOf(p Params) string {
	if t := strings.TrimSpace(p.TargetType); t != "" {
		return t
	}
	return defaultTargetType
}

// quoteRow renders values as one quoted, comma-separated line.
func quoteRow(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}
