package store

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	rowsTable    = "extracted_rows"
	columnsTable = "extraction_columns"
)

var ddl = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS extraction_columns (position INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS extracted_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			cells TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS extracted_rows_document_id ON extracted_rows (document_id)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS extraction_columns (position INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS extracted_rows (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			cells JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS extracted_rows_document_id ON extracted_rows (document_id)`,
	},
}

// SQL keeps result rows in a database table, one record per row with the cells
// JSON-encoded. A batch is appended in a single transaction.
type SQL struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool // nil for sqlite
	header []string
	logger *slog.Logger
}

// PostgresConfig tunes the pgx pool behind the postgres store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// OpenSQLite opens (creating when needed) a sqlite database file at path.
func OpenSQLite(ctx context.Context, path string, header []string, logger *slog.Logger) (*SQL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := stdsql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers, matching the single-writer table.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	s := &SQL{drv: entsql.OpenDB(dialect.SQLite, db), header: slices.Clone(header), logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("store.sqlite.opened", "path", path)
	return s, nil
}

// OpenPostgres creates a pgx pool, wraps it for the ent SQL driver and prepares the tables.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, header []string, logger *slog.Logger) (*SQL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("store.postgres.config_error", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "loa-extract"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("store.postgres.connect_error", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	s := &SQL{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, header: slices.Clone(header), logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("store.postgres.opened", "max_conns", pc.MaxConns)
	return s, nil
}

// migrate creates the tables and records or checks the header.
func (s *SQL) migrate(ctx context.Context) error {
	for _, stmt := range ddl[s.drv.Dialect()] {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	existing, err := s.storedHeader(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if !slices.Equal(existing, s.header) {
			return fmt.Errorf("result table has header %v, schema expects %v", existing, s.header)
		}
		return nil
	}

	insert := entsql.Dialect(s.drv.Dialect()).Insert(columnsTable).Columns("position", "name")
	for i, name := range s.header {
		insert.Values(i+1, name)
	}
	query, args := insert.Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("record header: %w", err)
	}
	return nil
}

func (s *SQL) storedHeader(ctx context.Context) ([]string, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select("name").
		From(entsql.Table(columnsTable)).
		OrderBy("position").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Append inserts every row of one document inside a transaction.
func (s *SQL) Append(ctx context.Context, rows [][]string) error {
	docID, err := checkBatch(rows, len(s.header))
	if err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	start := time.Now()
	now := time.Now().UTC()

	insert := entsql.Dialect(s.drv.Dialect()).
		Insert(rowsTable).
		Columns("document_id", "row_index", "cells", "created_at")
	for i, r := range rows {
		cells, err := json.Marshal(r[:len(r)-1])
		if err != nil {
			return &PersistenceError{DocumentID: docID, Err: err}
		}
		insert.Values(docID, i, string(cells), now)
	}
	query, args := insert.Query()

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		_ = tx.Rollback()
		return &PersistenceError{DocumentID: docID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{DocumentID: docID, Err: err}
	}

	s.logger.Debug("store.sql.append",
		"document_id", docID,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Processed returns the distinct document ids in the table.
func (s *SQL) Processed(ctx context.Context) (map[string]bool, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select("document_id").
		Distinct().
		From(entsql.Table(rowsTable)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan processed: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ReadAll returns every row in insertion order, cells followed by the document id.
func (s *SQL) ReadAll(ctx context.Context) (Table, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select("document_id", "cells").
		From(entsql.Table(rowsTable)).
		OrderBy("id").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return Table{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	t := Table{Header: slices.Clone(s.header)}
	for rows.Next() {
		var (
			docID string
			raw   []byte
		)
		if err := rows.Scan(&docID, &raw); err != nil {
			return Table{}, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal(raw, &cells); err != nil {
			return Table{}, fmt.Errorf("decode cells for %s: %w", docID, err)
		}
		t.Rows = append(t.Rows, append(cells, docID))
	}
	return t, rows.Err()
}

// Close releases the database handle and, for postgres, the pool.
func (s *SQL) Close() error {
	err := s.drv.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
