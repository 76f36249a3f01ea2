package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-rag/internal/rag"
)

func chunk(docID, workspaceID, userID int64, v ...float32) rag.Chunk {
	return rag.Chunk{
		DocumentID:  docID,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Content:     "text",
		Embedding:   v,
		Metadata:    rag.ChunkMetadata{DocumentID: docID, WorkspaceID: workspaceID},
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestStore_SearchScoping(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	_, err := s.InsertChunks(ctx, []rag.Chunk{
		chunk(1, 10, 100, 1, 0),
		chunk(2, 20, 100, 1, 0), // other workspace, same user
		chunk(3, 10, 200, 1, 0), // same workspace id, other user
		chunk(1, 10, 100, 0.8, 0.6),
	})
	require.NoError(t, err)

	hits, err := s.Search(ctx, []float32{1, 0}, rag.SearchFilter{WorkspaceID: 10, UserID: 100}, 0.01, 8)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, int64(10), h.WorkspaceID)
		assert.Equal(t, int64(100), h.UserID)
	}
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-6)
}

func TestStore_SearchThresholdAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	_, err := s.InsertChunks(ctx, []rag.Chunk{
		chunk(1, 1, 1, 1, 0),
		chunk(1, 1, 1, 0.6, 0.8),
		chunk(1, 1, 1, 0, 1),  // similarity 0, below the floor
		chunk(1, 1, 1, -1, 0), // negative
	})
	require.NoError(t, err)

	filter := rag.SearchFilter{WorkspaceID: 1, UserID: 1}
	hits, err := s.Search(ctx, []float32{1, 0}, filter, 0.01, 8)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.Search(ctx, []float32{1, 0}, filter, 0.01, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)

	hits, err = s.Search(ctx, []float32{1, 0}, filter, 0.7, 8)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.Search(ctx, []float32{1, 0}, filter, 0.01, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)

	n, err := s.InsertChunks(ctx, []rag.Chunk{chunk(1, 1, 1, 1, 2, 3), chunk(1, 1, 1, 1, 2)})
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
	assert.ErrorIs(t, err, rag.ErrStore)
	assert.Zero(t, n)
	assert.Zero(t, s.Len())

	_, err = s.Search(ctx, []float32{1}, rag.SearchFilter{}, 0, 8)
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	_, err := s.InsertChunks(ctx, []rag.Chunk{
		chunk(1, 10, 1, 1, 0),
		chunk(2, 10, 1, 1, 0),
		chunk(3, 20, 1, 1, 0),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteByDocument(ctx, 1))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.DeleteByWorkspace(ctx, 10))
	assert.Equal(t, 1, s.Len())

	hits, err := s.Search(ctx, []float32{1, 0}, rag.SearchFilter{WorkspaceID: 20, UserID: 1}, 0.01, 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(3), hits[0].DocumentID)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.InsertChunks(ctx, []rag.Chunk{chunk(1, 1, 1, 1, 0)})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Search(ctx, []float32{1, 0}, rag.SearchFilter{WorkspaceID: 1, UserID: 1}, 0.01, 8)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}

func TestRepository_Workspaces(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()

	a := &rag.Workspace{UserID: 1, Name: "a"}
	b := &rag.Workspace{UserID: 1, Name: "b"}
	c := &rag.Workspace{UserID: 2, Name: "c"}
	for _, ws := range []*rag.Workspace{a, b, c} {
		require.NoError(t, r.CreateWorkspace(ctx, ws))
		assert.NotZero(t, ws.ID)
	}

	list, err := r.ListWorkspaces(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)

	got, err := r.GetWorkspace(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UserID)

	_, err = r.GetWorkspace(ctx, 999)
	assert.ErrorIs(t, err, rag.ErrNotFound)
}

func TestRepository_DeleteWorkspaceCascades(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()

	ws := &rag.Workspace{UserID: 1, Name: "ws"}
	require.NoError(t, r.CreateWorkspace(ctx, ws))
	doc := &rag.Document{UserID: 1, WorkspaceID: ws.ID, Name: "d", Type: rag.DocumentTypeText, Content: "body"}
	require.NoError(t, r.CreateDocument(ctx, doc))

	docs, err := r.ListDocuments(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Content)

	full, err := r.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "body", full.Content)

	require.NoError(t, r.DeleteWorkspace(ctx, ws.ID))
	_, err = r.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, rag.ErrNotFound)
	assert.ErrorIs(t, r.DeleteWorkspace(ctx, ws.ID), rag.ErrNotFound)
}

func TestRepository_CreateDocumentRequiresWorkspace(t *testing.T) {
	err := NewRepository().CreateDocument(context.Background(), &rag.Document{WorkspaceID: 5})
	assert.ErrorIs(t, err, rag.ErrStore)
}
