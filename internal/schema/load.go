package schema

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format names a schema source encoding.
type Format string

const (
	FormatBlock Format = "block"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// FormatForPath picks the source format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatBlock
	}
}

// Decode parses r in the given format.
func Decode(r io.Reader, format Format) (*Schema, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(r)
	case FormatYAML:
		return ParseYAML(r)
	default:
		return Parse(r)
	}
}

// Load reads the schema file at path. Dropped constraints are logged as warnings.
func Load(path string, logger *slog.Logger) (*Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()

	s, err := Decode(f, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		logger.Warn("schema.constraint.dropped", "path", path, "detail", w)
	}
	logger.Info("schema.loaded", "path", path, "columns", s.NumColumns(), "key_columns", s.KeyColumns())
	return s, nil
}
