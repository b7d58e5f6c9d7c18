// Package sqlite is a durable VectorIndex stored in a single SQLite file.
// Vectors are kept as little-endian float32 blobs and searched by a
// brute-force cosine scan, which suits corpora of a few thousand chunks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"caserag/internal/domain"
	"caserag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id                 TEXT PRIMARY KEY,
	source_document_id TEXT NOT NULL,
	page_number        INTEGER NOT NULL,
	chunk_index        INTEGER NOT NULL,
	content            TEXT NOT NULL,
	embedding          BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_document_id);
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const dimensionKey = "dimension"

var _ domain.VectorIndex = (*Store)(nil)

// Store is a SQLite-backed VectorIndex.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns ~/.caserag/index.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".caserag", "index.db"), nil
}

// Open opens or creates the index at path. An empty path uses DefaultPath;
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Dimension returns the vector size fixed by the first upsert, or 0.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	return dimension(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dimension(ctx context.Context, q queryer) (int, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, dimensionKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimension: %w", err)
	}
	return strconv.Atoi(v)
}

// Upsert writes chunks in one transaction, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	dim, err := vectorstore.BatchDimension(chunks)
	if err != nil || dim == 0 {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stored, err := dimension(ctx, tx)
	if err != nil {
		return err
	}
	if err := vectorstore.CheckDimension(stored, dim); err != nil {
		return err
	}
	if stored == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`,
			dimensionKey, strconv.Itoa(dim)); err != nil {
			return fmt.Errorf("saving dimension: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_document_id, page_number, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_document_id = excluded.source_document_id,
			page_number = excluded.page_number,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.SourceDocumentID, c.PageNumber,
			c.ChunkIndex, c.Text, vectorstore.EncodeEmbedding(c.Vector)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// filterColumns maps filter keys to columns; the bool marks integer columns.
var filterColumns = map[string]bool{
	domain.MetaSourceDocumentID: false,
	domain.MetaPageNumber:       true,
	domain.MetaChunkIndex:       true,
}

// whereClause translates f into SQL. ok is false when f can match nothing.
func whereClause(f domain.Filter) (clause string, args []any, ok bool) {
	if len(f) == 0 {
		return "", nil, true
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		isInt, known := filterColumns[k]
		if !known {
			return "", nil, false
		}
		if isInt {
			n, err := strconv.Atoi(f[k])
			if err != nil {
				return "", nil, false
			}
			args = append(args, n)
		} else {
			args = append(args, f[k])
		}
		conds = append(conds, k+" = ?")
	}
	return " WHERE " + strings.Join(conds, " AND "), args, true
}

// Query scans matching rows and returns the k closest by cosine distance.
// Ties keep insertion order.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	stored, err := s.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(stored, len(vector)); err != nil {
		return nil, err
	}

	where, args, ok := whereClause(filter)
	if !ok {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_document_id, page_number, chunk_index, content, embedding
		FROM chunks`+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.Hit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			h    domain.Hit
			blob []byte
		)
		if err := rows.Scan(&h.ChunkID, &h.Metadata.SourceDocumentID, &h.Metadata.PageNumber,
			&h.Metadata.ChunkIndex, &h.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := vectorstore.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", h.ChunkID, err)
		}
		h.Distance = vectorstore.CosineDistance(vector, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Reset deletes every chunk and forgets the vector dimension.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("deleting index metadata: %w", err)
	}
	return tx.Commit()
}
