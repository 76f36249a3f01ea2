package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"workspace-rag/internal/rag"
)

var _ rag.Repository = (*Repository)(nil)

// Repository keeps workspaces and documents in maps. Deleting a workspace
// deletes its documents, mirroring the relational cascade.
type Repository struct {
	mu         sync.RWMutex
	nextID     int64
	workspaces map[int64]rag.Workspace
	documents  map[int64]rag.Document
	now        func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		workspaces: make(map[int64]rag.Workspace),
		documents:  make(map[int64]rag.Document),
		now:        time.Now,
	}
}

func (r *Repository) CreateWorkspace(_ context.Context, ws *rag.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ws.ID = r.nextID
	ws.CreatedAt = r.now().UTC()
	r.workspaces[ws.ID] = *ws
	return nil
}

func (r *Repository) ListWorkspaces(_ context.Context, userID int64) ([]rag.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rag.Workspace
	for _, ws := range r.workspaces {
		if ws.UserID == userID {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Repository) GetWorkspace(_ context.Context, id int64) (*rag.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: workspace %d", rag.ErrNotFound, id)
	}
	return &ws, nil
}

func (r *Repository) DeleteWorkspace(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[id]; !ok {
		return fmt.Errorf("%w: workspace %d", rag.ErrNotFound, id)
	}
	delete(r.workspaces, id)
	for docID, d := range r.documents {
		if d.WorkspaceID == id {
			delete(r.documents, docID)
		}
	}
	return nil
}

func (r *Repository) CreateDocument(_ context.Context, doc *rag.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[doc.WorkspaceID]; !ok {
		return fmt.Errorf("%w: workspace %d does not exist", rag.ErrStore, doc.WorkspaceID)
	}
	r.nextID++
	doc.ID = r.nextID
	doc.CreatedAt = r.now().UTC()
	r.documents[doc.ID] = *doc
	return nil
}

// ListDocuments returns documents newest first, without content.
func (r *Repository) ListDocuments(_ context.Context, workspaceID int64) ([]rag.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rag.Document
	for _, d := range r.documents {
		if d.WorkspaceID == workspaceID {
			d.Content = ""
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Repository) GetDocument(_ context.Context, id int64) (*rag.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %d", rag.ErrNotFound, id)
	}
	return &d, nil
}

func (r *Repository) DeleteDocument(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.documents[id]; !ok {
		return fmt.Errorf("%w: document %d", rag.ErrNotFound, id)
	}
	delete(r.documents, id)
	return nil
}
