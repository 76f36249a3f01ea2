// Package documents ingests uploaded files into a workspace and manages the
// resulting document records.
package documents

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
	"workspace-rag/internal/workspaces"
	"workspace-rag/services/embed"
)

// Service handles the business logic for documents.
type Service struct {
	Workspaces *workspaces.Service
	Repo       rag.Repository
	Store      rag.VectorStore
	Extractor  rag.Extractor
	Pipeline   *embed.Service
}

// UploadRequest is one file to ingest.
type UploadRequest struct {
	WorkspaceID int64
	UserID      int64
	FileName    string
	MIMEType    string
	Data        []byte
}

// UploadResult reports the new document and how many chunks made it through.
type UploadResult struct {
	DocumentID     int64 `json:"documentId"`
	ChunksTotal    int   `json:"chunksTotal"`
	ChunksEmbedded int   `json:"chunksEmbedded"`
	ChunksStored   int   `json:"chunksStored"`
}

// Upload extracts, records, chunks, embeds and stores a file. The document is
// recorded before embedding starts, so it exists even if every chunk fails.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	log := logrus.WithFields(logrus.Fields{
		"request_id":    uuid.NewString(),
		"workspace_id":  req.WorkspaceID,
		"user_id":       req.UserID,
		"document_name": req.FileName,
		"mime_type":     req.MIMEType,
	})
	log.Info("service: ingesting document")

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", rag.ErrInvalidInput)
	}
	if _, err := s.Workspaces.Get(ctx, req.WorkspaceID, req.UserID); err != nil {
		return nil, err
	}

	text, docType, err := s.Extractor.Extract(ctx, req.Data, req.MIMEType)
	if err != nil {
		log.WithError(err).Warn("service: text extraction failed")
		return nil, err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < embed.MinChunkLength {
		log.WithField("length", utf8.RuneCountInString(text)).Warn("service: extracted text too short")
		return nil, fmt.Errorf("%w: could not extract text from the file, it may be empty or a scanned image",
			rag.ErrUnsupportedInput)
	}

	doc := &rag.Document{
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		Name:        name,
		Type:        docType,
		Content:     text,
	}
	if err := s.Repo.CreateDocument(ctx, doc); err != nil {
		log.WithError(err).Error("service: failed to save document to database")
		return nil, err
	}
	log = log.WithField("document_id", doc.ID)

	res, err := s.Pipeline.ProcessDocument(ctx, doc)
	if err != nil {
		log.WithError(err).Error("service: document processing aborted")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"chunks_total":    res.ChunksTotal,
		"chunks_embedded": res.ChunksEmbedded,
		"chunks_stored":   res.ChunksStored,
	}).Info("service: document ingested")

	return &UploadResult{
		DocumentID:     doc.ID,
		ChunksTotal:    res.ChunksTotal,
		ChunksEmbedded: res.ChunksEmbedded,
		ChunksStored:   res.ChunksStored,
	}, nil
}

// List returns the workspace's documents after checking ownership.
func (s *Service) List(ctx context.Context, workspaceID, userID int64) ([]rag.Document, error) {
	if _, err := s.Workspaces.Get(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	docs, err := s.Repo.ListDocuments(ctx, workspaceID)
	if err != nil {
		logrus.WithError(err).WithField("workspace_id", workspaceID).Error("service: failed to list documents")
		return nil, err
	}
	if docs == nil {
		docs = []rag.Document{}
	}
	return docs, nil
}

// Get returns a document the user owns.
func (s *Service) Get(ctx context.Context, documentID, userID int64) (*rag.Document, error) {
	doc, err := s.Repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"document_id": documentID,
			"user_id":     userID,
		}).Warn("service: document access denied")
		return nil, fmt.Errorf("%w: document %d", rag.ErrUnauthorized, documentID)
	}
	return doc, nil
}

// Delete removes the document's chunks and then the document.
func (s *Service) Delete(ctx context.Context, documentID, userID int64) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
	})
	log.Info("service: deleting document")

	if _, err := s.Get(ctx, documentID, userID); err != nil {
		return err
	}
	if err := s.Store.DeleteByDocument(ctx, documentID); err != nil {
		log.WithError(err).Error("service: failed to delete document chunks")
		return err
	}
	if err := s.Repo.DeleteDocument(ctx, documentID); err != nil {
		log.WithError(err).Error("service: failed to delete document from database")
		return err
	}

	log.Info("service: document deleted successfully")
	return nil
}
