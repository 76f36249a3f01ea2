package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-rag/internal/rag"
	"workspace-rag/internal/rag/ragtest"
	"workspace-rag/internal/workspaces"
	"workspace-rag/services/embed"
	"workspace-rag/services/memory"
)

const dims = 4096

type fixture struct {
	svc      *Service
	gen      *ragtest.Generator
	embedder *ragtest.HashEmbedder
	store    *memory.Store
	repo     *memory.Repository
	ws       *rag.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewRepository()
	store := memory.NewStore(dims)
	emb := ragtest.NewHashEmbedder(dims)
	gen := &ragtest.Generator{}
	wsSvc := &workspaces.Service{Repo: repo, Store: store}

	ws, err := wsSvc.Create(context.Background(), 1, "handbook")
	require.NoError(t, err)

	return &fixture{
		svc: &Service{
			Workspaces: wsSvc,
			Embedder:   emb,
			Store:      store,
			Generator:  gen,
		},
		gen:      gen,
		embedder: emb,
		store:    store,
		repo:     repo,
		ws:       ws,
	}
}

// ingest runs text through the real chunker and embedding pipeline.
func (f *fixture) ingest(t *testing.T, name, text string) *rag.Document {
	t.Helper()
	ctx := context.Background()
	doc := &rag.Document{UserID: 1, WorkspaceID: f.ws.ID, Name: name, Type: rag.DocumentTypeText, Content: text}
	require.NoError(t, f.repo.CreateDocument(ctx, doc))

	logger, _ := test.NewNullLogger()
	pipeline := &embed.Service{
		Chunker:  embed.NewChunker(embed.WithChunkSize(1000), embed.WithOverlap(200)),
		Embedder: f.embedder,
		Store:    f.store,
		Logger:   logger,
	}
	_, err := pipeline.ProcessDocument(ctx, doc)
	require.NoError(t, err)
	return doc
}

// filler repeats sentences drawn from a vocabulary no other section uses.
func filler(words []string, n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "%s %s %s. ", words[i%len(words)], words[(i+1)%len(words)], words[(i+2)%len(words)])
	}
	return b.String()
}

const secret = "Launch code zebra quantum marmalade unlocks vault seven. "

func roundTripText() string {
	first := filler([]string{"apple", "apricot", "avocado", "almond"}, 1000)
	second := filler([]string{"banana", "blueberry", "bramble"}, 150) + secret +
		filler([]string{"banana", "blueberry", "bramble"}, 790)
	third := filler([]string{"cherry", "coconut", "cranberry"}, 1000)
	return first + second + third
}

func TestAsk_RoundTrip(t *testing.T) {
	f := newFixture(t)
	text := roundTripText()
	require.GreaterOrEqual(t, len(text), 3000)
	f.ingest(t, "handbook.txt", text)

	chunks := embed.NewChunker().Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 3)
	secretChunk := -1
	for i, c := range chunks {
		assert.GreaterOrEqual(t, len([]rune(c)), embed.MinChunkLength)
		if secretChunk < 0 && strings.Contains(c, strings.TrimSpace(secret)) {
			secretChunk = i
		}
	}
	require.Equal(t, 1, secretChunk, "secret sentence should land in the second chunk")

	answer, err := f.svc.Ask(context.Background(), Request{
		WorkspaceID: f.ws.ID,
		UserID:      1,
		Question:    "Which launch code unlocks vault seven?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "handbook.txt")
	assert.Equal(t, []string{"handbook.txt"}, answer.Sources)

	require.Equal(t, 1, f.gen.CallCount())
	hits := f.gen.Calls[0].Chunks
	require.NotEmpty(t, hits)
	assert.Equal(t, 1, hits[0].Metadata.ChunkIndex)
	assert.Contains(t, hits[0].Content, strings.TrimSpace(secret))

	// A chunk queried with its own text is a perfect match.
	self, err := f.embedder.Embed(context.Background(), hits[0].Content)
	require.NoError(t, err)
	selfHits, err := f.store.Search(context.Background(), self, rag.SearchFilter{WorkspaceID: f.ws.ID, UserID: 1}, DefaultMinSimilarity, 1)
	require.NoError(t, err)
	require.Len(t, selfHits, 1)
	assert.InDelta(t, 1.0, selfHits[0].Similarity, 1e-6)
}

func TestAsk_NoHitsSkipsGenerator(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "fruit.txt", filler([]string{"apple", "apricot", "avocado"}, 1200))

	answer, err := f.svc.Ask(context.Background(), Request{
		WorkspaceID: f.ws.ID, UserID: 1, Question: "zebra quantum marmalade",
	})
	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, f.gen.CallCount())
}

func TestAsk_EmptyWorkspace(t *testing.T) {
	f := newFixture(t)
	answer, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "anything?"})
	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, answer.Text)
	assert.Zero(t, f.gen.CallCount())
}

func TestAsk_OnlySearchesCallersWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, "mine.txt", filler([]string{"apple", "apricot", "avocado"}, 1200))

	other, err := f.svc.Workspaces.Create(ctx, 1, "other")
	require.NoError(t, err)
	doc := &rag.Document{UserID: 1, WorkspaceID: other.ID, Name: "theirs.txt", Type: rag.DocumentTypeText,
		Content: filler([]string{"zebra", "quantum", "marmalade"}, 1200)}
	require.NoError(t, f.repo.CreateDocument(ctx, doc))
	pipeline := &embed.Service{Chunker: embed.NewChunker(), Embedder: f.embedder, Store: f.store}
	_, err = pipeline.ProcessDocument(ctx, doc)
	require.NoError(t, err)

	answer, err := f.svc.Ask(ctx, Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "zebra quantum marmalade"})
	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, answer.Text)
}

func TestAsk_Errors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "  "})
		assert.ErrorIs(t, err, rag.ErrInvalidInput)
		assert.Zero(t, f.embedder.Calls())
	})

	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 2, Question: "q"})
		assert.ErrorIs(t, err, rag.ErrUnauthorized)
		assert.Zero(t, f.embedder.Calls())
	})

	t.Run("embedding failure", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.FailOn = func(string) bool { return true }
		_, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "q"})
		assert.ErrorIs(t, err, rag.ErrEmbedding)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.svc.Store = memory.NewStore(3)
		_, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "q"})
		assert.ErrorIs(t, err, rag.ErrStore)
	})

	t.Run("generation failure", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, "fruit.txt", filler([]string{"apple", "apricot", "avocado"}, 1200))
		f.gen.Err = fmt.Errorf("%w: %w", rag.ErrGeneration, rag.ErrAllModelsRateLimited)
		_, err := f.svc.Ask(context.Background(), Request{WorkspaceID: f.ws.ID, UserID: 1, Question: "apple apricot"})
		assert.ErrorIs(t, err, rag.ErrAllModelsRateLimited)
	})
}

func TestSources_DedupInRankOrder(t *testing.T) {
	hits := []rag.ScoredChunk{
		{Chunk: rag.Chunk{DocumentName: "b.pdf"}},
		{Chunk: rag.Chunk{DocumentName: "a.txt"}},
		{Chunk: rag.Chunk{DocumentName: "b.pdf"}},
	}
	assert.Equal(t, []string{"b.pdf", "a.txt"}, Sources(hits))
	assert.Empty(t, Sources(nil))
}
