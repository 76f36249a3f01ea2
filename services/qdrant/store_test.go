package qdrant

import (
	"context"
	"errors"
	"os"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"workspace-rag/internal/rag"
)

// fakePoints records requests. Methods not overridden panic through the nil
// embedded interface.
type fakePoints struct {
	qdrant.PointsClient
	upserts   []*qdrant.UpsertPoints
	deletes   []*qdrant.DeletePoints
	search    *qdrant.SearchPoints
	results   []*qdrant.ScoredPoint
	failAfter int
}

func (f *fakePoints) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	if f.failAfter > 0 && len(f.upserts) >= f.failAfter {
		return nil, errors.New("unavailable")
	}
	f.upserts = append(f.upserts, in)
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	f.search = in
	return &qdrant.SearchResponse{Result: f.results}, nil
}

func (f *fakePoints) Delete(_ context.Context, in *qdrant.DeletePoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.deletes = append(f.deletes, in)
	return &qdrant.PointsOperationResponse{}, nil
}

func newTestStore(points *fakePoints, batch int) *Store {
	return &Store{
		points:     points,
		collection: "chunks",
		dimensions: 2,
		batchSize:  batch,
		log:        logrus.New(),
	}
}

func testChunk(i int) rag.Chunk {
	return rag.Chunk{
		DocumentID: 5, WorkspaceID: 9, UserID: 3,
		DocumentName: "guide.pdf", Content: "some content",
		Embedding: []float32{1, 0},
		Metadata:  rag.ChunkMetadata{DocumentID: 5, WorkspaceID: 9, ChunkIndex: i, Type: rag.DocumentTypePDF},
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	c := testChunk(4)
	got := chunkFromPayload(payloadFor(c))
	c.Embedding = nil
	assert.Equal(t, c, got)
}

func TestInsertChunks_Batches(t *testing.T) {
	points := &fakePoints{}
	s := newTestStore(points, 2)

	n, err := s.InsertChunks(context.Background(), []rag.Chunk{testChunk(0), testChunk(1), testChunk(2)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, points.upserts, 2)
	assert.Len(t, points.upserts[0].Points, 2)
	assert.Len(t, points.upserts[1].Points, 1)
	assert.Equal(t, "chunks", points.upserts[0].CollectionName)
	assert.NotEmpty(t, points.upserts[0].Points[0].GetId().GetUuid())
}

func TestInsertChunks_PartialFailure(t *testing.T) {
	points := &fakePoints{failAfter: 1}
	s := newTestStore(points, 2)

	n, err := s.InsertChunks(context.Background(), []rag.Chunk{testChunk(0), testChunk(1), testChunk(2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrStore)
	assert.Equal(t, 2, n)
}

func TestInsertChunks_DimensionMismatch(t *testing.T) {
	points := &fakePoints{}
	bad := testChunk(0)
	bad.Embedding = []float32{1, 2, 3}

	_, err := newTestStore(points, 50).InsertChunks(context.Background(), []rag.Chunk{bad})
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
	assert.Empty(t, points.upserts)
}

func TestSearch_FilterAndThreshold(t *testing.T) {
	points := &fakePoints{
		results: []*qdrant.ScoredPoint{
			{Payload: payloadFor(testChunk(0)), Score: 0.9},
			{Payload: payloadFor(testChunk(1)), Score: 0.25},
		},
	}
	s := newTestStore(points, 50)

	hits, err := s.Search(context.Background(), []float32{1, 0}, rag.SearchFilter{WorkspaceID: 9, UserID: 3}, 0.25, 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.9, hits[0].Similarity, 1e-6)
	assert.Equal(t, "guide.pdf", hits[0].DocumentName)

	req := points.search
	require.NotNil(t, req)
	assert.Equal(t, uint64(8), req.GetLimit())
	assert.InDelta(t, 0.25, req.GetScoreThreshold(), 1e-6)
	require.Len(t, req.GetFilter().GetMust(), 2)
	keys := []string{
		req.GetFilter().GetMust()[0].GetField().GetKey(),
		req.GetFilter().GetMust()[1].GetField().GetKey(),
	}
	assert.ElementsMatch(t, []string{keyWorkspaceID, keyUserID}, keys)
}

func TestDelete(t *testing.T) {
	points := &fakePoints{}
	s := newTestStore(points, 50)

	require.NoError(t, s.DeleteByDocument(context.Background(), 5))
	require.NoError(t, s.DeleteByWorkspace(context.Background(), 9))
	require.Len(t, points.deletes, 2)
	assert.Equal(t, keyDocumentID, points.deletes[0].GetPoints().GetFilter().GetMust()[0].GetField().GetKey())
	assert.Equal(t, keyWorkspaceID, points.deletes[1].GetPoints().GetFilter().GetMust()[0].GetField().GetKey())
}

func TestConnect_Qdrant(t *testing.T) {
	host, port := os.Getenv("TEST_QDRANT_HOST"), os.Getenv("TEST_QDRANT_PORT")
	if host == "" || port == "" {
		t.Skip("TEST_QDRANT_HOST/TEST_QDRANT_PORT not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, Config{Host: host, Port: port, Collection: "workspace_rag_test", Dimensions: 2})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.InsertChunks(ctx, []rag.Chunk{testChunk(0)})
	require.NoError(t, err)
	hits, err := s.Search(ctx, []float32{1, 0}, rag.SearchFilter{WorkspaceID: 9, UserID: 3}, 0.01, 8)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	require.NoError(t, s.DeleteByWorkspace(ctx, 9))
}

func TestConnect_MissingAddress(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.Error(t, err)
}
