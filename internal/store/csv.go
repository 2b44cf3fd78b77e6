package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// CSV is the default result table: one delimited file, header written once.
//
// The file is guarded by an exclusive lock on "<path>.lock" for the lifetime of the store,
// so a second run against the same table fails fast instead of interleaving rows.
type CSV struct {
	path   string
	header []string
	lock   *flock.Flock
	logger *slog.Logger

	mu sync.Mutex
}

// OpenCSV locks the table at path and checks an existing header against header.
func OpenCSV(path string, header []string, logger *slog.Logger) (*CSV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create result dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock result table: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("result table %s is locked by another process", path)
	}

	s := &CSV{path: path, header: slices.Clone(header), lock: lock, logger: logger}
	if err := s.checkHeader(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	logger.Info("store.csv.opened", "path", path, "columns", len(header))
	return s, nil
}

func (s *CSV) checkHeader() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open result table: %w", err)
	}
	defer f.Close()

	r := newReader(f)
	existing, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read result header: %w", err)
	}
	if !slices.Equal(existing, s.header) {
		return fmt.Errorf("result table %s has header %v, schema expects %v", s.path, existing, s.header)
	}
	return nil
}

// Append writes rows in a single write. On failure the file is truncated back to its
// previous size so no partial row survives.
func (s *CSV) Append(ctx context.Context, rows [][]string) error {
	docID, err := checkBatch(rows, len(s.header))
	if err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	size := st.Size()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if size == 0 {
		if err := w.Write(s.header); err != nil {
			return &PersistenceError{DocumentID: docID, Err: err}
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		if tErr := f.Truncate(size); tErr != nil {
			s.logger.Error("store.csv.truncate_failed", "path", s.path, "document_id", docID, "error", tErr)
		}
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}

	s.logger.Debug("store.csv.append",
		"document_id", docID,
		"rows", len(rows),
		"header_written", size == 0,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Processed scans the trailing field of every row.
func (s *CSV) Processed(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	err := s.scan(ctx, func(record []string) {
		if len(record) > 0 {
			out[record[len(record)-1]] = true
		}
	})
	return out, err
}

// ReadAll returns the header and every row.
func (s *CSV) ReadAll(ctx context.Context) (Table, error) {
	t := Table{Header: slices.Clone(s.header)}
	err := s.scan(ctx, func(record []string) {
		t.Rows = append(t.Rows, record)
	})
	return t, err
}

// scan calls fn for every data row, skipping the header.
func (s *CSV) scan(ctx context.Context, fn func([]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open result table: %w", err)
	}
	defer f.Close()

	r := newReader(f)
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read result table: %w", err)
		}
		if first {
			first = false
			continue
		}
		fn(record)
	}
}

// Close releases the table lock.
func (s *CSV) Close() error {
	return s.lock.Unlock()
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}
