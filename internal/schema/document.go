package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema_document.json
var documentSchemaJSON string

var compileDocumentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema_document.json", strings.NewReader(documentSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("schema_document.json")
})

// ParseJSON reads a schema document encoded as JSON.
func ParseJSON(r io.Reader) (*Schema, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &FormatError{Msg: "decode json", Err: err}
	}
	return fromDocument(doc)
}

// ParseYAML reads a schema document encoded as YAML. It is normalized through JSON so
// that it validates exactly like a JSON document.
func ParseYAML(r io.Reader) (*Schema, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &FormatError{Msg: "decode yaml", Err: err}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, &FormatError{Msg: "normalize yaml", Err: err}
	}
	return ParseJSON(bytes.NewReader(b))
}

func fromDocument(doc any) (*Schema, error) {
	sch, err := compileDocumentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema document schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &FormatError{Msg: "document does not match the schema format", Err: err}
	}

	m := doc.(map[string]any)
	keys, err := documentKeyColumns(m["key_columns"])
	if err != nil {
		return nil, &FormatError{Msg: err.Error()}
	}

	items, _ := m["columns"].([]any)
	raws := make([]rawColumn, 0, len(items))
	for _, item := range items {
		col := item.(map[string]any)
		idx, err := strconv.Atoi(scalarString(col["index"]))
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("column index %v is not an integer", col["index"])}
		}
		raw := rawColumn{
			Index:       idx,
			HasIndex:    true,
			Name:        scalarString(col["name"]),
			Type:        scalarString(col["type"]),
			Description: scalarString(col["description"]),
			Constraints: map[string][]string{},
		}
		// Deterministic iteration keeps warning order stable.
		names := make([]string, 0, len(col))
		for k := range col {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			switch k {
			case "index", "name", "type", "description":
				continue
			}
			key := canonicalConstraintKey(k)
			if vals := documentValues(key, col[k]); len(vals) > 0 {
				raw.Constraints[key] = vals
			}
		}
		raws = append(raws, raw)
	}
	return build(raws, keys)
}

func documentKeyColumns(v any) ([]int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return parseKeyColumns(t)
	case []any:
		out := make([]int, 0, len(t))
		for _, e := range t {
			n, err := strconv.Atoi(scalarString(e))
			if err != nil {
				return nil, fmt.Errorf("key column %v is not an integer", e)
			}
			out = append(out, n)
		}
		return out, nil
	default:
		n, err := strconv.Atoi(scalarString(t))
		if err != nil {
			return nil, fmt.Errorf("key column %v is not an integer", t)
		}
		return []int{n}, nil
	}
}

func documentValues(key string, v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := strings.TrimSpace(scalarString(e)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if isListKey(key) {
			return splitList(t)
		}
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	default:
		return []string{scalarString(t)}
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
