// Package export renders the result table as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MorganRO8/LoA-sub000/internal/store"
)

const (
	resultsSheet   = "Results"
	documentsSheet = "Documents"
	maxColWidth    = 60
)

// Service is a tiny façade over the result store that produces XLSX bytes.
type Service struct {
	reader store.Reader
	logger *slog.Logger
}

func NewService(reader store.Reader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, logger: logger}
}

// ExportXLSX returns a workbook with the raw result rows on one sheet and a
// per-document summary on another.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	table, err := s.reader.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}
	if err := writeResults(f, table); err != nil {
		return nil, err
	}

	docs, totals := Summarize(table)
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return nil, err
	}
	if err := writeDocuments(f, docs); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(resultsSheet)
	f.SetActiveSheet(activeIndex)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(table.Rows),
		"documents", totals.Documents,
		"failed", totals.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile exports to path, creating parent directories.
func (s *Service) WriteFile(ctx context.Context, path string) error {
	data, err := s.ExportXLSX(ctx)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func writeResults(f *excelize.File, t store.Table) error {
	widths := make([]int, len(t.Header))
	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if col < len(widths) && len(v) > widths[col] {
			widths[col] = len(v)
		}
		return f.SetCellValue(resultsSheet, cell, v)
	}

	for i, h := range t.Header {
		if err := write(i, 1, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			if err := write(c, r+2, v); err != nil {
				return err
			}
		}
	}

	if len(t.Header) > 0 {
		last, _ := excelize.ColumnNumberToName(len(t.Header))
		boldHeader(f, resultsSheet, last+"1")
		_ = f.SetPanes(resultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
		_ = f.AutoFilter(resultsSheet, "A1:"+last+strconv.Itoa(len(t.Rows)+1), nil)
	}
	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(resultsSheet, name, name, float64(clampWidth(w)))
	}
	return nil
}

func writeDocuments(f *excelize.File, docs []DocumentSummary) error {
	if err := f.SetSheetRow(documentsSheet, "A1", &[]any{"document_id", "status", "rows"}); err != nil {
		return err
	}
	for i, d := range docs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(documentsSheet, cell, &[]any{d.DocumentID, d.Status, d.Rows}); err != nil {
			return err
		}
	}
	boldHeader(f, documentsSheet, "C1")
	_ = f.SetColWidth(documentsSheet, "A", "A", 40)
	_ = f.SetColWidth(documentsSheet, "B", "C", 12)
	return nil
}

func boldHeader(f *excelize.File, sheet, lastCell string) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return
	}
	_ = f.SetCellStyle(sheet, "A1", lastCell, style)
}

func clampWidth(w int) int {
	w += 2
	if w < 8 {
		return 8
	}
	if w > maxColWidth {
		return maxColWidth
	}
	return w
}
