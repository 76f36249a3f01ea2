// Package qdrant stores document chunks as points in a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"workspace-rag/internal/rag"
)

// Defaults for the chunk collection.
const (
	DefaultCollection = "document_chunks"
	DefaultBatchSize  = 50
)

// Payload keys.
const (
	keyUserID       = "user_id"
	keyWorkspaceID  = "workspace_id"
	keyDocumentID   = "document_id"
	keyDocumentName = "document_name"
	keyContent      = "content"
	keyChunkIndex   = "chunk_index"
	keyType         = "type"
)

var _ rag.VectorStore = (*Store)(nil)

// Config configures the Qdrant connection.
type Config struct {
	Host       string
	Port       string
	Collection string
	Dimensions int
	BatchSize  int
	Logger     logrus.FieldLogger
}

// Store implements rag.VectorStore over Qdrant's gRPC API.
type Store struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
	dimensions  int
	batchSize   int
	log         logrus.FieldLogger
}

// Connect dials Qdrant, checks that it answers and makes sure the collection exists.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("QDRANT_SERVICE_HOST or QDRANT_SERVICE_PORT is not set")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	log := cfg.Logger.WithField("address", addr)
	log.Info("qdrant: connecting to gRPC service")

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("did not connect: %w", err)
	}

	s := &Store{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		collection:  cfg.Collection,
		dimensions:  cfg.Dimensions,
		batchSize:   cfg.BatchSize,
		log:         cfg.Logger.WithField("collection_name", cfg.Collection),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := s.collections.List(pingCtx, &qdrant.ListCollectionsRequest{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}
	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("qdrant: connected")
	return s, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) Dimensions() int { return s.dimensions }

// ensureCollection creates the cosine collection and its payload indexes when missing.
func (s *Store) ensureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		s.log.Debug("qdrant: collection already exists")
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		return fmt.Errorf("could not get collection info: %w", err)
	}

	s.log.Info("qdrant: collection not found, creating it")
	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not create collection: %w", err)
	}

	wait := true
	for _, field := range []string{keyUserID, keyWorkspaceID, keyDocumentID} {
		_, err = s.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
			Wait:           &wait,
		})
		if err != nil {
			return fmt.Errorf("could not create %q payload index: %w", field, err)
		}
	}
	s.log.Info("qdrant: collection and payload indexes created")
	return nil
}

// InsertChunks upserts chunks in batches. Each batch is one request.
func (s *Store) InsertChunks(ctx context.Context, chunks []rag.Chunk) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return 0, fmt.Errorf("%w: %w: chunk %d has %d dimensions, store expects %d",
				rag.ErrStore, rag.ErrDimensionMismatch, i, len(c.Embedding), s.dimensions)
		}
	}

	wait := true
	inserted := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(uuid.NewString()),
				Vectors: qdrant.NewVectors(c.Embedding...),
				Payload: payloadFor(c),
			})
		}
		_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			s.log.WithError(err).WithField("inserted", inserted).Error("qdrant: batch upsert failed")
			return inserted, fmt.Errorf("%w: upsert batch at %d: %w", rag.ErrStore, start, err)
		}
		inserted += end - start
	}
	return inserted, nil
}

// Search runs a filtered cosine search. Qdrant's threshold is inclusive, so
// hits equal to minSimilarity are dropped here.
func (s *Store) Search(ctx context.Context, query []float32, filter rag.SearchFilter, minSimilarity float64, limit int) ([]rag.ScoredChunk, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, store expects %d",
			rag.ErrStore, rag.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	threshold := float32(minSimilarity)
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Filter:         scopeFilter(filter),
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant search: %w", rag.ErrStore, err)
	}

	out := make([]rag.ScoredChunk, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		score := float64(p.GetScore())
		if score <= minSimilarity {
			continue
		}
		out = append(out, rag.ScoredChunk{Chunk: chunkFromPayload(p.GetPayload()), Similarity: score})
	}
	return out, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID int64) error {
	return s.deleteWhere(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchInt(keyDocumentID, documentID)},
	})
}

func (s *Store) DeleteByWorkspace(ctx context.Context, workspaceID int64) error {
	return s.deleteWhere(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchInt(keyWorkspaceID, workspaceID)},
	})
}

func (s *Store) deleteWhere(ctx context.Context, f *qdrant.Filter) error {
	wait := true
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete: %w", rag.ErrStore, err)
	}
	return nil
}

func scopeFilter(f rag.SearchFilter) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchInt(keyWorkspaceID, f.WorkspaceID),
			qdrant.NewMatchInt(keyUserID, f.UserID),
		},
	}
}

func payloadFor(c rag.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		keyUserID:       c.UserID,
		keyWorkspaceID:  c.WorkspaceID,
		keyDocumentID:   c.DocumentID,
		keyDocumentName: c.DocumentName,
		keyContent:      c.Content,
		keyChunkIndex:   int64(c.Metadata.ChunkIndex),
		keyType:         c.Metadata.Type,
	})
}

func chunkFromPayload(p map[string]*qdrant.Value) rag.Chunk {
	c := rag.Chunk{
		UserID:       p[keyUserID].GetIntegerValue(),
		WorkspaceID:  p[keyWorkspaceID].GetIntegerValue(),
		DocumentID:   p[keyDocumentID].GetIntegerValue(),
		DocumentName: p[keyDocumentName].GetStringValue(),
		Content:      p[keyContent].GetStringValue(),
	}
	c.Metadata = rag.ChunkMetadata{
		DocumentID:  c.DocumentID,
		WorkspaceID: c.WorkspaceID,
		ChunkIndex:  int(p[keyChunkIndex].GetIntegerValue()),
		Type:        p[keyType].GetStringValue(),
	}
	return c
}
