// Package query answers questions about a workspace from its stored chunks.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
	"workspace-rag/internal/workspaces"
)

// Retrieval defaults.
const (
	DefaultMinSimilarity = 0.01
	DefaultLimit         = 8
)

// NoResultsAnswer is returned without calling a model when nothing relevant is found.
const NoResultsAnswer = "I couldn't find any relevant information in the workspace documents to answer your question."

// Generator produces an answer grounded in the given chunks.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []rag.ScoredChunk) (string, error)
}

// Service runs the retrieve-then-generate pipeline.
type Service struct {
	Workspaces    *workspaces.Service
	Embedder      rag.Embedder
	Store         rag.VectorStore
	Generator     Generator
	MinSimilarity float64
	Limit         int
}

// Request is one question against one workspace.
type Request struct {
	WorkspaceID int64
	UserID      int64
	Question    string
}

// Answer is the generated text and the names of the documents it drew on,
// in rank order without duplicates.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
	Chunks  int      `json:"-"`
}

// Ask answers req.Question using only chunks from the caller's workspace.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	log := logrus.WithFields(logrus.Fields{
		"workspace_id": req.WorkspaceID,
		"user_id":      req.UserID,
	})

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", rag.ErrInvalidInput)
	}
	if _, err := s.Workspaces.Get(ctx, req.WorkspaceID, req.UserID); err != nil {
		return nil, err
	}

	vec, err := s.Embedder.Embed(ctx, question)
	if err != nil {
		log.WithError(err).Error("service: failed to embed question")
		return nil, err
	}

	hits, err := s.Store.Search(ctx, vec,
		rag.SearchFilter{WorkspaceID: req.WorkspaceID, UserID: req.UserID},
		s.minSimilarity(), s.limit())
	if err != nil {
		log.WithError(err).Error("service: similarity search failed")
		return nil, err
	}
	log.WithField("hits", len(hits)).Info("service: chunks retrieved")

	if len(hits) == 0 {
		return &Answer{Text: NoResultsAnswer, Sources: []string{}}, nil
	}

	text, err := s.Generator.Generate(ctx, question, hits)
	if err != nil {
		log.WithError(err).Error("service: answer generation failed")
		return nil, err
	}

	return &Answer{Text: text, Sources: Sources(hits), Chunks: len(hits)}, nil
}

// Sources returns the distinct document names of hits in rank order.
func Sources(hits []rag.ScoredChunk) []string {
	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if seen[h.DocumentName] {
			continue
		}
		seen[h.DocumentName] = true
		out = append(out, h.DocumentName)
	}
	return out
}

func (s *Service) minSimilarity() float64 {
	if s.MinSimilarity <= 0 {
		return DefaultMinSimilarity
	}
	return s.MinSimilarity
}

func (s *Service) limit() int {
	if s.Limit <= 0 {
		return DefaultLimit
	}
	return s.Limit
}
