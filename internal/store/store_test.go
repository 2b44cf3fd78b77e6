package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorganRO8/LoA-sub000/internal/common"
)

var header = []string{"compound", "yield", "document_id"}

func openStores(t *testing.T) map[string]func(t *testing.T, dir string) Store {
	t.Helper()
	return map[string]func(t *testing.T, dir string) Store{
		"csv": func(t *testing.T, dir string) Store {
			s, err := OpenCSV(filepath.Join(dir, "results.csv"), header, nil)
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T, dir string) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(dir, "results.db"), header, nil)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreRoundTripAndResume(t *testing.T) {
	ctx := context.Background()
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			s := open(t, dir)

			processed, err := s.Processed(ctx)
			require.NoError(t, err)
			assert.Empty(t, processed)

			require.NoError(t, s.Append(ctx, [][]string{{"A", "50%", "doc1.txt"}, {"B", "70%", "doc1.txt"}}))
			require.NoError(t, s.Append(ctx, [][]string{{"failed", "failed", "doc2.txt"}}))
			require.NoError(t, s.Close())

			// Reopen: processed set survives, header is not rewritten.
			s = open(t, dir)
			defer s.Close()
			processed, err = s.Processed(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{"doc1.txt": true, "doc2.txt": true}, processed)

			require.NoError(t, s.Append(ctx, [][]string{{"null", "null", "doc3.txt"}}))

			table, err := s.(Reader).ReadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, header, table.Header)
			assert.Equal(t, [][]string{
				{"A", "50%", "doc1.txt"},
				{"B", "70%", "doc1.txt"},
				{"failed", "failed", "doc2.txt"},
				{"null", "null", "doc3.txt"},
			}, table.Rows)
			for _, row := range table.Rows {
				assert.Len(t, row, len(header))
			}
		})
	}
}

func TestStoreRejectsBadBatch(t *testing.T) {
	ctx := context.Background()
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t, t.TempDir())
			defer s.Close()

			err := s.Append(ctx, [][]string{{"A", "doc1.txt"}})
			var pe *PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.True(t, errors.Is(err, common.ErrPersistence))

			err = s.Append(ctx, [][]string{{"A", "1", "doc1.txt"}, {"B", "2", "doc2.txt"}})
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "doc1.txt", pe.DocumentID)

			require.Error(t, s.Append(ctx, nil))

			processed, err := s.Processed(ctx)
			require.NoError(t, err)
			assert.Empty(t, processed, "rejected batches write nothing")
		})
	}
}

func TestStoreHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,document_id\nx,y,d1\n"), 0o644))
	_, err := OpenCSV(path, header, nil)
	assert.ErrorContains(t, err, "schema expects")

	dbPath := filepath.Join(dir, "results.db")
	s, err := OpenSQLite(context.Background(), dbPath, header, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = OpenSQLite(context.Background(), dbPath, []string{"other", "document_id"}, nil)
	assert.ErrorContains(t, err, "schema expects")
}

func TestCSVHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	s, err := OpenCSV(path, header, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, [][]string{{"A, B", `5"`, "d1"}}))
	require.NoError(t, s.Append(ctx, [][]string{{"C", "6", "d2"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "compound,yield,document_id"))
	assert.Equal(t, "compound,yield,document_id\n\"A, B\",\"5\"\"\",d1\nC,6,d2\n", string(raw))
}

func TestCSVLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := OpenCSV(path, header, nil)
	require.NoError(t, err)

	_, err = OpenCSV(path, header, nil)
	assert.ErrorContains(t, err, "locked")

	require.NoError(t, s.Close())
	s2, err := OpenCSV(path, header, nil)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestCSVConcurrentAppends(t *testing.T) {
	s, err := OpenCSV(filepath.Join(t.TempDir(), "results.csv"), header, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := "doc" + string(rune('a'+i))
			assert.NoError(t, s.Append(ctx, [][]string{{"x", "1", doc}, {"y", "2", doc}}))
		}(i)
	}
	wg.Wait()

	table, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, table.Rows, 40)
	// Rows of one document stay adjacent.
	for i := 0; i < len(table.Rows); i += 2 {
		assert.Equal(t, table.Rows[i][2], table.Rows[i+1][2])
	}
}

func TestOpenFactory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, common.StoreConfig{Driver: common.StoreCSV, Path: filepath.Join(dir, "r.csv")}, header, nil)
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, common.StoreConfig{Driver: common.StoreSQLite, Path: filepath.Join(dir, "r.db")}, header, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQL{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, common.StoreConfig{Driver: "parquet"}, header, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
