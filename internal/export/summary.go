package export

import (
	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/store"
)

// Document outcome labels as reported in summaries.
const (
	StatusExtracted = "extracted"
	StatusNoData    = "no_data"
	StatusFailed    = "failed"
)

// DocumentSummary is the per-document view of the result table.
type DocumentSummary struct {
	DocumentID string
	Status     string
	Rows       int
}

// Totals counts documents by status.
type Totals struct {
	Documents int
	Extracted int
	NoData    int
	Failed    int
	Rows      int // data rows, excluding null and failed placeholders
}

// Summarize groups table rows by their trailing document id, in first-seen order.
func Summarize(t store.Table) ([]DocumentSummary, Totals) {
	var (
		out    []DocumentSummary
		index  = make(map[string]int)
		totals Totals
	)
	for _, row := range t.Rows {
		if len(row) < 2 {
			continue
		}
		id := row[len(row)-1]
		status := rowStatus(row[:len(row)-1])
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, DocumentSummary{DocumentID: id, Status: status})
		}
		if status == StatusExtracted {
			out[i].Status = StatusExtracted
			out[i].Rows++
		}
	}
	for _, d := range out {
		totals.Documents++
		totals.Rows += d.Rows
		switch d.Status {
		case StatusExtracted:
			totals.Extracted++
		case StatusNoData:
			totals.NoData++
		case StatusFailed:
			totals.Failed++
		}
	}
	return out, totals
}

func rowStatus(cells []string) string {
	switch {
	case allEqual(cells, constants.FailedToken):
		return StatusFailed
	case allEqual(cells, constants.NullToken):
		return StatusNoData
	}
	return StatusExtracted
}

func allEqual(cells []string, token string) bool {
	for _, c := range cells {
		if c != token {
			return false
		}
	}
	return len(cells) > 0
}
