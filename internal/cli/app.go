package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/config"
	"workspace-rag/internal/db"
	"workspace-rag/internal/documents"
	"workspace-rag/internal/query"
	"workspace-rag/internal/rag"
	"workspace-rag/internal/workspaces"
	"workspace-rag/services/embed"
	"workspace-rag/services/extract"
	"workspace-rag/services/llm"
	"workspace-rag/services/memory"
	"workspace-rag/services/pgvector"
	"workspace-rag/services/qdrant"
)

// App holds the wired services shared by the commands.
type App struct {
	Workspaces *workspaces.Service
	Documents  *documents.Service
	Query      *query.Service

	closers []func() error
}

// Close releases database and gRPC connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp is replaced in tests.
var buildApp = newApp

func newApp(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{}
	log := logrus.WithField("vector_backend", cfg.Vector.Backend)

	repo, store, err := openStorage(ctx, cfg, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	wsSvc := &workspaces.Service{Repo: repo, Store: store}
	app.Workspaces = wsSvc
	app.Documents = &documents.Service{
		Workspaces: wsSvc,
		Repo:       repo,
		Store:      store,
		Extractor:  extract.New(cfg.PDFToTextPath),
		Pipeline: &embed.Service{
			Chunker: embed.NewChunker(
				embed.WithChunkSize(cfg.Chunking.Size),
				embed.WithOverlap(cfg.Chunking.Overlap),
			),
			Embedder: embedder,
			Store:    store,
			Pacer:    embed.NewPacer(cfg.Embedding.PauseEvery, cfg.Embedding.Pause),
			Logger:   logrus.StandardLogger(),
		},
	}
	app.Query = &query.Service{
		Workspaces:    wsSvc,
		Embedder:      embedder,
		Store:         store,
		Generator:     newGenerator(cfg),
		MinSimilarity: cfg.Search.MinSimilarity,
		Limit:         cfg.Search.Limit,
	}

	log.WithFields(logrus.Fields{
		"embedding_model":      embedder.ModelName(),
		"embedding_dimensions": embedder.Dimensions(),
	}).Info("cli: services initialized")
	return app, nil
}

// openStorage returns the document repository and the vector store for the
// configured backend. Workspaces and documents live in Postgres unless the
// whole backend is in memory.
func openStorage(ctx context.Context, cfg config.Config, app *App) (rag.Repository, rag.VectorStore, error) {
	if cfg.Vector.Backend == config.BackendMemory {
		logrus.Warn("cli: using in-memory storage, data is lost on exit")
		return memory.NewRepository(), memory.NewStore(cfg.Embedding.Dimensions), nil
	}

	drv, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	app.closers = append(app.closers, drv.Close)
	repo := db.NewRepository(drv)

	switch cfg.Vector.Backend {
	case config.BackendQdrant:
		store, err := qdrant.Connect(ctx, qdrant.Config{
			Host:       cfg.Vector.QdrantHost,
			Port:       cfg.Vector.QdrantPort,
			Collection: cfg.Vector.QdrantCollection,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Vector.InsertBatchSize,
			Logger:     logrus.StandardLogger(),
		})
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, store.Close)
		return repo, store, nil
	case config.BackendPgvector:
		store := pgvector.New(drv, cfg.Embedding.Dimensions,
			pgvector.WithBatchSize(cfg.Vector.InsertBatchSize),
			pgvector.WithLogger(logrus.StandardLogger()),
		)
		return repo, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

func newEmbedder(cfg config.Config) (rag.Embedder, error) {
	p := cfg.EmbeddingProvider()
	ec := embed.Config{
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		Models:     cfg.Embedding.Models,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logrus.StandardLogger(),
	}
	if cfg.Embedding.Provider == config.EmbeddingOpenAI {
		return embed.NewOpenAIEmbedder(ec)
	}
	return embed.NewGeminiEmbedder(ec)
}

// newGenerator puts Groq first and Gemini second. A provider without a key
// stays in the list and fails over at call time.
func newGenerator(cfg config.Config) *llm.Generator {
	providers := []rag.ChatProvider{
		llm.NewOpenAICompatible(llm.ProviderConfig{
			Name:    "groq",
			APIKey:  cfg.Groq.APIKey,
			BaseURL: cfg.Groq.BaseURL,
			Models:  cfg.Chat.PrimaryModels,
			Timeout: cfg.HTTPTimeout,
		}),
		llm.NewGemini(llm.ProviderConfig{
			Name:    "gemini",
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Models:  cfg.Chat.SecondaryModels,
			Timeout: cfg.HTTPTimeout,
		}),
	}
	return llm.NewGenerator(providers,
		llm.WithRetryDelay(cfg.Chat.RetryDelay),
		llm.WithLogger(logrus.StandardLogger()),
	)
}
