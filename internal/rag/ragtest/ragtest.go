// Package ragtest provides deterministic stand-ins for the external services
// used by the pipelines.
package ragtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"workspace-rag/internal/rag"
)

// HashEmbedder embeds text as a hashed bag of lower-cased words. Identical
// texts get identical vectors and texts with no words in common score zero.
type HashEmbedder struct {
	Dims int

	mu     sync.Mutex
	calls  int
	FailOn func(text string) bool
}

// NewHashEmbedder returns an embedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{Dims: dims}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.FailOn != nil && h.FailOn(text) {
		return nil, fmt.Errorf("%w: scripted failure", rag.ErrEmbedding)
	}

	vec := make([]float32, h.Dims)
	for _, w := range Words(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[int(f.Sum32()%uint32(h.Dims))]++
	}
	return vec, nil
}

func (h *HashEmbedder) Dimensions() int   { return h.Dims }
func (h *HashEmbedder) ModelName() string { return "hash" }

// Calls returns how many times Embed was invoked.
func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Words splits text into lower-cased letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Generator records questions and answers by naming the documents it was given.
type Generator struct {
	mu    sync.Mutex
	Err   error
	Calls []GenerateCall
}

// GenerateCall is one recorded Generate invocation.
type GenerateCall struct {
	Question string
	Chunks   []rag.ScoredChunk
}

func (g *Generator) Generate(_ context.Context, question string, chunks []rag.ScoredChunk) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, GenerateCall{Question: question, Chunks: chunks})
	if g.Err != nil {
		return "", g.Err
	}
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.DocumentName)
	}
	return "Based on " + strings.Join(names, ", ") + ": " + chunks[0].Content, nil
}

// CallCount returns how many times Generate was invoked.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
