package embed

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
)

// Service runs the chunk, embed and store stages for a single document.
type Service struct {
	Chunker  *Chunker
	Embedder rag.Embedder
	Store    rag.VectorStore
	Pacer    *Pacer
	Logger   logrus.FieldLogger
}

// Result reports how far a document got through the pipeline.
type Result struct {
	ChunksTotal    int
	ChunksEmbedded int
	ChunksStored   int
}

// ProcessDocument chunks doc.Content, embeds each chunk in order and stores the
// ones that embedded. A chunk that fails to embed is logged and skipped; the
// document is still considered ingested. Only context cancellation is returned
// as an error; store failures are logged and reflected in ChunksStored.
func (s *Service) ProcessDocument(ctx context.Context, doc *rag.Document) (Result, error) {
	log := s.logger().WithFields(logrus.Fields{
		"document_id":  doc.ID,
		"workspace_id": doc.WorkspaceID,
	})

	chunker := s.Chunker
	if chunker == nil {
		chunker = NewChunker()
	}
	pieces := chunker.Chunk(doc.Content)
	res := Result{ChunksTotal: len(pieces)}
	log.WithField("chunk_count", len(pieces)).Info("service: document chunked")
	if len(pieces) == 0 {
		return res, nil
	}

	chunks := make([]rag.Chunk, 0, len(pieces))
	for i, content := range pieces {
		if err := s.Pacer.Wait(ctx); err != nil {
			return res, fmt.Errorf("embed document %d: %w", doc.ID, err)
		}
		vec, err := s.Embedder.Embed(ctx, content)
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("embed document %d: %w", doc.ID, ctx.Err())
			}
			log.WithError(err).WithField("chunk_index", i).Warn("service: failed to embed chunk, skipping")
			continue
		}
		chunks = append(chunks, rag.Chunk{
			DocumentID:   doc.ID,
			WorkspaceID:  doc.WorkspaceID,
			UserID:       doc.UserID,
			DocumentName: doc.Name,
			Content:      content,
			Embedding:    vec,
			Metadata: rag.ChunkMetadata{
				DocumentID:  doc.ID,
				WorkspaceID: doc.WorkspaceID,
				ChunkIndex:  i,
				Type:        doc.Type,
			},
		})
	}
	res.ChunksEmbedded = len(chunks)
	log.WithFields(logrus.Fields{
		"embedded": res.ChunksEmbedded,
		"failed":   res.ChunksTotal - res.ChunksEmbedded,
	}).Info("service: chunks embedded")

	if len(chunks) == 0 {
		log.Warn("service: no chunks embedded, nothing to store")
		return res, nil
	}

	stored, err := s.Store.InsertChunks(ctx, chunks)
	res.ChunksStored = stored
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("store document %d: %w", doc.ID, ctx.Err())
		}
		log.WithError(err).WithField("stored", stored).Error("service: failed to store all chunks")
		return res, nil
	}

	log.WithField("stored", stored).Info("service: document processing completed")
	return res, nil
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}
