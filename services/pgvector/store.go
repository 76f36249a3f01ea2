// Package pgvector stores document chunks in Postgres using the pgvector
// extension and ranks them with the cosine distance operator.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"workspace-rag/internal/db"
	"workspace-rag/internal/rag"
)

// DefaultBatchSize is how many chunks go into one INSERT transaction.
const DefaultBatchSize = 50

var _ rag.VectorStore = (*Store)(nil)

// Store implements rag.VectorStore on the document_chunks table.
type Store struct {
	drv        *entsql.Driver
	dimensions int
	batchSize  int
	log        logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger used for batch progress.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// New returns a store for vectors of the given length.
func New(drv *entsql.Driver, dimensions int, opts ...Option) *Store {
	s := &Store{
		drv:        drv,
		dimensions: dimensions,
		batchSize:  DefaultBatchSize,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dimensions() int { return s.dimensions }

// InsertChunks writes chunks in transactions of batchSize rows. Batches that
// committed before a failure stay committed and are counted in the result.
func (s *Store) InsertChunks(ctx context.Context, chunks []rag.Chunk) (int, error) {
	if err := checkDimensions(chunks, s.dimensions); err != nil {
		return 0, err
	}

	inserted := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		if err := s.insertBatch(ctx, chunks[start:end]); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"batch_start": start,
				"inserted":    inserted,
			}).Error("pgvector: batch insert failed")
			return inserted, fmt.Errorf("%w: insert batch at %d: %w", rag.ErrStore, start, err)
		}
		inserted += end - start
		s.log.WithField("inserted", inserted).Debug("pgvector: batch committed")
	}
	return inserted, nil
}

func (s *Store) insertBatch(ctx context.Context, batch []rag.Chunk) error {
	insert := entsql.Dialect(dialect.Postgres).
		Insert(db.ChunksTable).
		Columns("document_id", "workspace_id", "user_id", "document_name", "content", "embedding", "metadata")
	for _, c := range batch {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		insert.Values(c.DocumentID, c.WorkspaceID, c.UserID, c.DocumentName, c.Content,
			pgvector.NewVector(c.Embedding), string(meta))
	}
	query, args := insert.Query()

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// searchQuery ranks by the cosine distance operator. The similarity floor and
// the workspace/user filter are applied by Postgres.
const searchQuery = `SELECT id, document_id, workspace_id, user_id, document_name, content, metadata,
	1 - (embedding <=> $1) AS similarity
FROM ` + db.ChunksTable + `
WHERE workspace_id = $2 AND user_id = $3 AND 1 - (embedding <=> $1) > $4
ORDER BY embedding <=> $1
LIMIT $5`

// Search returns the closest chunks within the filter's workspace and user.
func (s *Store) Search(ctx context.Context, query []float32, filter rag.SearchFilter, minSimilarity float64, limit int) ([]rag.ScoredChunk, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, store expects %d",
			rag.ErrStore, rag.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	args := []any{pgvector.NewVector(query), filter.WorkspaceID, filter.UserID, minSimilarity, limit}
	var rows entsql.Rows
	if err := s.drv.Query(ctx, searchQuery, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	var out []rag.ScoredChunk
	for rows.Next() {
		var (
			sc   rag.ScoredChunk
			meta []byte
		)
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.WorkspaceID, &sc.UserID,
			&sc.DocumentName, &sc.Content, &meta, &sc.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", rag.ErrStore, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &sc.Metadata); err != nil {
				return nil, fmt.Errorf("%w: decode metadata for chunk %d: %w", rag.ErrStore, sc.ID, err)
			}
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
	}
	return out, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID int64) error {
	return s.deleteWhere(ctx, entsql.EQ("document_id", documentID))
}

func (s *Store) DeleteByWorkspace(ctx context.Context, workspaceID int64) error {
	return s.deleteWhere(ctx, entsql.EQ("workspace_id", workspaceID))
}

func (s *Store) deleteWhere(ctx context.Context, p *entsql.Predicate) error {
	query, args := entsql.Dialect(dialect.Postgres).
		Delete(db.ChunksTable).
		Where(p).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("%w: delete chunks: %w", rag.ErrStore, err)
	}
	return nil
}

func checkDimensions(chunks []rag.Chunk, want int) error {
	for i, c := range chunks {
		if len(c.Embedding) != want {
			return fmt.Errorf("%w: %w: chunk %d has %d dimensions, store expects %d",
				rag.ErrStore, rag.ErrDimensionMismatch, i, len(c.Embedding), want)
		}
	}
	return nil
}
