package export

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MorganRO8/LoA-sub000/internal/store"
)

type tableReader struct {
	table store.Table
	err   error
}

func (r tableReader) ReadAll(context.Context) (store.Table, error) { return r.table, r.err }

func sampleTable() store.Table {
	return store.Table{
		Header: []string{"compound", "yield", "document_id"},
		Rows: [][]string{
			{"A", "50%", "p1.txt"},
			{"B", "70%", "p1.txt"},
			{"null", "null", "p2.txt"},
			{"failed", "failed", "p3.txt"},
			{"C", "null", "p4.txt"},
		},
	}
}

func TestSummarize(t *testing.T) {
	docs, totals := Summarize(sampleTable())
	assert.Equal(t, []DocumentSummary{
		{DocumentID: "p1.txt", Status: StatusExtracted, Rows: 2},
		{DocumentID: "p2.txt", Status: StatusNoData},
		{DocumentID: "p3.txt", Status: StatusFailed},
		{DocumentID: "p4.txt", Status: StatusExtracted, Rows: 1},
	}, docs)
	assert.Equal(t, Totals{Documents: 4, Extracted: 2, NoData: 1, Failed: 1, Rows: 3}, totals)
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(tableReader{table: sampleTable()}, nil)
	data, err := svc.ExportXLSX(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{resultsSheet, documentsSheet}, f.GetSheetList())

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"compound", "yield", "document_id"}, rows[0])
	assert.Equal(t, []string{"failed", "failed", "p3.txt"}, rows[4])

	docs, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, docs, 5)
	assert.Equal(t, []string{"p1.txt", "extracted", "2"}, docs[1])
	assert.Equal(t, []string{"p3.txt", "failed", "0"}, docs[3])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.xlsx")
	svc := NewService(tableReader{table: sampleTable()}, nil)
	require.NoError(t, svc.WriteFile(context.Background(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(resultsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "A", v)
}

func TestExportReadError(t *testing.T) {
	svc := NewService(tableReader{err: errors.New("boom")}, nil)
	_, err := svc.ExportXLSX(context.Background())
	assert.ErrorContains(t, err, "boom")
}
