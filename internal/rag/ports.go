package rag

import "context"

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the vector length the configured model produces.
	Dimensions() int

	// ModelName returns the model used for the most recent successful call,
	// or the first configured model.
	ModelName() string
}

// VectorStore persists chunks and ranks them by cosine similarity.
type VectorStore interface {
	// InsertChunks writes chunks in independent batches and returns how many
	// rows were committed, even when a later batch fails.
	InsertChunks(ctx context.Context, chunks []Chunk) (int, error)

	// Search returns at most limit chunks matching filter whose similarity is
	// strictly greater than minSimilarity, best first.
	Search(ctx context.Context, query []float32, filter SearchFilter, minSimilarity float64, limit int) ([]ScoredChunk, error)

	DeleteByDocument(ctx context.Context, documentID int64) error
	DeleteByWorkspace(ctx context.Context, workspaceID int64) error

	// Dimensions is the vector length the store accepts.
	Dimensions() int
}

// Repository stores workspace and document records.
// Lookups return ErrNotFound when the row does not exist.
type Repository interface {
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	ListWorkspaces(ctx context.Context, userID int64) ([]Workspace, error)
	GetWorkspace(ctx context.Context, id int64) (*Workspace, error)
	DeleteWorkspace(ctx context.Context, id int64) error

	CreateDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, workspaceID int64) ([]Document, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// ChatProvider is one chat-completion vendor with a priority list of models.
type ChatProvider interface {
	Name() string
	Models() []string
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Extractor converts raw file bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (text string, docType string, err error)
}
