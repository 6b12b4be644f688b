// Package vectorstore implements the gateway to the pgvector-backed
// document store.
//
// A collection is a named table of embedded text chunks. Collections
// are created lazily on first use: a fetch that classifies as
// KindNotFound triggers creation, any other failure propagates.
// Creation is idempotent so concurrent first requests may race without
// harm. Search is a read operation and the gateway is safe for
// concurrent use by multiple goroutines.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

const (
	// searchTimeout bounds a single nearest-neighbor query so a slow
	// store cannot hang the request.
	searchTimeout = 10 * time.Second

	// collectionTablePrefix namespaces collection tables in the schema.
	collectionTablePrefix = "vs_"
)

// collectionNamePattern restricts collection names to safe SQL
// identifier characters. Table names cannot be bound as query
// parameters, so validation is the injection barrier here.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// ErrInvalidCollectionName indicates a collection name that cannot be
// used as a table identifier.
var ErrInvalidCollectionName = errors.New("invalid collection name")

// Document is one similarity-search hit. Results are ranked
// nearest-first; Similarity is the cosine similarity to the query.
type Document struct {
	Text       string
	Metadata   map[string]string
	Similarity float64
}

// Record is one row to be ingested into a collection.
type Record struct {
	ID       uuid.UUID
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Collection is a handle to a named vector collection.
type Collection struct {
	Name      string
	Dimension int

	table string
}

// Querier is the subset of pgxpool.Pool the store depends on.
// Consumer-defined so tests can substitute fakes.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is the vector store gateway.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// tableFor maps a collection name to its backing table, validating the
// name first.
func tableFor(name string) (string, error) {
	if !collectionNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return collectionTablePrefix + name, nil
}

// GetOrCreateCollection opens the named collection, creating it when
// the store reports it missing.
//
// Only a KindNotFound classification triggers creation; any other
// failure (connectivity, permissions) propagates as a classified
// *Error because it indicates a problem worth surfacing, not a
// first-use condition.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string, dimension int) (*Collection, error) {
	table, err := tableFor(name)
	if err != nil {
		return nil, err
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("collection dimension must be positive, got %d", dimension)
	}

	coll := &Collection{Name: name, Dimension: dimension, table: table}

	probeErr := s.probe(ctx, table)
	if probeErr == nil {
		return coll, nil
	}
	if classify(probeErr) != KindNotFound {
		return nil, wrap("fetch collection "+name, probeErr)
	}

	if err := s.create(ctx, coll); err != nil {
		return nil, err
	}
	s.logger.Info("created vector collection", "collection", name, "dimension", dimension)
	return coll, nil
}

// probe checks that the collection table exists. A zero-row select
// keeps the check free of data transfer; a missing table surfaces as
// undefined_table.
func (s *Store) probe(ctx context.Context, table string) error {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT 1 FROM %s LIMIT 0`, table))
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

// create builds the collection table and its cosine-distance index.
// duplicate_table from a concurrent create is treated as success: the
// collection exists either way.
func (s *Store) create(ctx context.Context, coll *Collection) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE %s (
			id         UUID PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  VECTOR(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, coll.table, coll.Dimension)

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		if isDuplicate(err) {
			return nil
		}
		return wrap("create collection "+coll.Name, err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
		coll.table, coll.table)
	if _, err := s.db.Exec(ctx, idx); err != nil {
		// The table is usable without the index, just slower.
		s.logger.Warn("creating vector index", "collection", coll.Name, "error", err)
	}
	return nil
}

// isDuplicate reports whether err is a duplicate-relation error from a
// concurrent create.
func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		(pgErr.Code == pgerrcode.DuplicateTable || pgErr.Code == pgerrcode.DuplicateObject)
}

// Search returns up to limit documents nearest to vector, ranked
// nearest-first by cosine distance. No metadata filter is applied.
// Ties are broken by the store's native order and are not stable.
func (s *Store) Search(ctx context.Context, coll *Collection, vector []float32, limit int) ([]Document, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", limit)
	}
	if len(vector) != coll.Dimension {
		return nil, fmt.Errorf("query vector dimension %d does not match collection dimension %d",
			len(vector), coll.Dimension)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, coll.table)

	rows, err := s.db.Query(queryCtx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, wrap("search", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, limit)
	for rows.Next() {
		var (
			content      string
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&content, &metadataJSON, &similarity); err != nil {
			return nil, wrap("search scan", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			s.logger.Warn("failed to parse document metadata", "error", err)
			metadata = make(map[string]string)
		}

		docs = append(docs, Document{
			Text:       content,
			Metadata:   metadata,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("search", err)
	}

	return docs, nil
}

// Upsert inserts or replaces records in the collection. Used by the
// ingestion pipeline; replaying a source updates its chunks in place.
func (s *Store) Upsert(ctx context.Context, coll *Collection, records []Record) error {
	if coll == nil {
		return errors.New("collection is required")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`, coll.table)

	for _, rec := range records {
		if len(rec.Vector) != coll.Dimension {
			return fmt.Errorf("record %s vector dimension %d does not match collection dimension %d",
				rec.ID, len(rec.Vector), coll.Dimension)
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %s: %w", rec.ID, err)
		}
		if _, err := s.db.Exec(ctx, query, rec.ID, rec.Text, pgvector.NewVector(rec.Vector), metadataJSON); err != nil {
			return wrap("upsert", err)
		}
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, coll *Collection) (int64, error) {
	if coll == nil {
		return 0, errors.New("collection is required")
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, coll.table))
	if err != nil {
		return 0, wrap("count", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, wrap("count scan", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, wrap("count", err)
	}
	return count, nil
}
