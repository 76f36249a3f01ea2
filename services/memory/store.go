// Package memory holds in-process implementations of the repository and
// vector store ports. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"workspace-rag/internal/rag"
)

var _ rag.VectorStore = (*Store)(nil)

// Store is a brute-force cosine similarity vector store.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	nextID     int64
	chunks     []rag.Chunk
}

// NewStore creates a store for vectors of the given length.
func NewStore(dimensions int) *Store {
	return &Store{dimensions: dimensions}
}

func (s *Store) Dimensions() int { return s.dimensions }

// InsertChunks stores all chunks or none of them.
func (s *Store) InsertChunks(_ context.Context, chunks []rag.Chunk) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return 0, fmt.Errorf("%w: %w: chunk %d has %d dimensions, store expects %d",
				rag.ErrStore, rag.ErrDimensionMismatch, i, len(c.Embedding), s.dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.nextID++
		c.ID = s.nextID
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks = append(s.chunks, c)
	}
	return len(chunks), nil
}

// Search scores every chunk in the filter's scope and returns the best ones.
func (s *Store) Search(_ context.Context, query []float32, filter rag.SearchFilter, minSimilarity float64, limit int) ([]rag.ScoredChunk, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, store expects %d",
			rag.ErrStore, rag.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var hits []rag.ScoredChunk
	for _, c := range s.chunks {
		if c.WorkspaceID != filter.WorkspaceID || c.UserID != filter.UserID {
			continue
		}
		sim := Cosine(query, c.Embedding)
		if sim > minSimilarity {
			hits = append(hits, rag.ScoredChunk{Chunk: c, Similarity: sim})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) DeleteByDocument(_ context.Context, documentID int64) error {
	s.remove(func(c rag.Chunk) bool { return c.DocumentID == documentID })
	return nil
}

func (s *Store) DeleteByWorkspace(_ context.Context, workspaceID int64) error {
	s.remove(func(c rag.Chunk) bool { return c.WorkspaceID == workspaceID })
	return nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) remove(match func(rag.Chunk) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !match(c) {
			kept = append(kept, c)
		}
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
