// Package rag holds the domain types, ports and error taxonomy shared by the
// ingestion and query pipelines.
package rag

import "time"

// Document type tags.
const (
	DocumentTypePDF  = "pdf"
	DocumentTypeText = "text"
)

// Workspace is a named group of documents owned by one user. It scopes retrieval.
type Workspace struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a user-uploaded source file after successful text extraction.
type Document struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	WorkspaceID int64     `json:"workspaceId"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Content     string    `json:"-"` // full-text backup
	CreatedAt   time.Time `json:"createdAt"`
}

// ChunkMetadata is persisted alongside each chunk as JSON.
type ChunkMetadata struct {
	DocumentID  int64  `json:"documentId"`
	WorkspaceID int64  `json:"workspaceId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Type        string `json:"type"`
}

// Chunk is a segment of a document's text together with its embedding.
type Chunk struct {
	ID           int64         `json:"id"`
	DocumentID   int64         `json:"documentId"`
	WorkspaceID  int64         `json:"workspaceId"`
	UserID       int64         `json:"userId"`
	DocumentName string        `json:"documentName"`
	Content      string        `json:"content"`
	Embedding    []float32     `json:"-"`
	Metadata     ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a search hit. Similarity is 1 - cosine distance.
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// SearchFilter restricts search candidates to one workspace of one user.
type SearchFilter struct {
	WorkspaceID int64
	UserID      int64
}
