package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/documents"
	"workspace-rag/internal/rag"
)

// MaxUploadSize caps the multipart body of an upload.
const MaxUploadSize = 32 << 20

// DocumentHandler handles HTTP requests for documents.
type DocumentHandler struct {
	Service *documents.Service
}

// UploadDocument handles POST /workspaces/{workspaceID}/documents
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	wsID, ok := idParam(w, r, "workspaceID")
	if !ok {
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"user_id":      uid,
		"workspace_id": wsID,
	})

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		log.WithError(err).Warn("handler: missing upload file")
		respondError(w, http.StatusBadRequest, "Field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Warn("handler: failed to read upload")
		respondError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	res, err := h.Service.Upload(r.Context(), documents.UploadRequest{
		WorkspaceID: wsID,
		UserID:      uid,
		FileName:    header.Filename,
		MIMEType:    uploadType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	})
	if err != nil {
		respondServiceError(w, log, err, "handler: failed to ingest document")
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

// uploadType prefers the part's declared type and falls back to the file extension.
func uploadType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".txt" || ext == ".md" {
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return declared
}

// ListDocuments handles GET /workspaces/{workspaceID}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	wsID, ok := idParam(w, r, "workspaceID")
	if !ok {
		return
	}

	docs, err := h.Service.List(r.Context(), wsID, uid)
	if err != nil {
		respondServiceError(w, logrus.WithFields(logrus.Fields{
			"user_id":      uid,
			"workspace_id": wsID,
		}), err, "handler: failed to list documents")
		return
	}

	respondJSON(w, http.StatusOK, docs)
}

// GetDocument handles GET /workspaces/{workspaceID}/documents/{documentID}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /workspaces/{workspaceID}/documents/{documentID}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"user_id":     doc.UserID,
		"document_id": doc.ID,
	})
	if err := h.Service.Delete(r.Context(), doc.ID, doc.UserID); err != nil {
		respondServiceError(w, log, err, "handler: failed to delete document")
		return
	}

	log.Info("handler: document deleted")
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the document in the route and checks that it belongs to the
// workspace in the route.
func (h *DocumentHandler) lookup(w http.ResponseWriter, r *http.Request) (*rag.Document, bool) {
	uid, ok := userID(w, r)
	if !ok {
		return nil, false
	}
	wsID, ok := idParam(w, r, "workspaceID")
	if !ok {
		return nil, false
	}
	docID, ok := idParam(w, r, "documentID")
	if !ok {
		return nil, false
	}

	log := logrus.WithFields(logrus.Fields{
		"user_id":      uid,
		"workspace_id": wsID,
		"document_id":  docID,
	})
	doc, err := h.Service.Get(r.Context(), docID, uid)
	if err == nil && doc.WorkspaceID != wsID {
		err = fmt.Errorf("%w: document %d is not in workspace %d", rag.ErrNotFound, docID, wsID)
	}
	if err != nil {
		if !errors.Is(err, rag.ErrNotFound) {
			respondServiceError(w, log, err, "handler: failed to get document")
			return nil, false
		}
		log.WithError(err).Warn("handler: document not found")
		respondError(w, http.StatusNotFound, "Document not found")
		return nil, false
	}
	return doc, true
}
