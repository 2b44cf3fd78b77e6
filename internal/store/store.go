// Package store persists result rows append-only and answers which documents are
// already processed.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MorganRO8/LoA-sub000/internal/common"
)

// Store is the append-only result table. Every row carries the schema columns followed
// by the document id.
type Store interface {
	// Processed returns the ids of every document that has at least one row.
	Processed(ctx context.Context) (map[string]bool, error)
	// Append writes all rows of one document or none of them.
	Append(ctx context.Context, rows [][]string) error
	Close() error
}

// Table is a full read of the result table.
type Table struct {
	Header []string
	Rows   [][]string
}

// Reader reads the whole table back, for export and status reporting.
type Reader interface {
	ReadAll(ctx context.Context) (Table, error)
}

// PersistenceError is a failed append. Rows written before it are intact.
type PersistenceError struct {
	DocumentID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist rows for %s: %v", e.DocumentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, common.ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool { return target == common.ErrPersistence }

// checkBatch verifies every row has width fields and all rows share one document id.
func checkBatch(rows [][]string, width int) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("empty batch")
	}
	if width < 1 || len(rows[0]) != width {
		return "", fmt.Errorf("row 0 has %d fields, want %d", len(rows[0]), width)
	}
	docID := rows[0][width-1]
	for i, r := range rows {
		if len(r) != width {
			return docID, fmt.Errorf("row %d has %d fields, want %d", i, len(r), width)
		}
		if r[width-1] != docID {
			return docID, fmt.Errorf("row %d belongs to %q, batch is for %q", i, r[width-1], docID)
		}
	}
	return docID, nil
}

// Open builds the store selected by cfg. header is the full table header, document id
// column included.
func Open(ctx context.Context, cfg common.StoreConfig, header []string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case common.StoreCSV:
		return OpenCSV(cfg.Path, header, logger)
	case common.StoreSQLite:
		return OpenSQLite(ctx, cfg.Path, header, logger)
	case common.StorePostgres:
		return OpenPostgres(ctx, PostgresConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			DialTimeout:     10 * time.Second,
		}, header, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown store driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}
