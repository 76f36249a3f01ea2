package db

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"workspace-rag/internal/rag"
)

var _ rag.Repository = (*Repository)(nil)

// Repository is the Postgres implementation of rag.Repository.
type Repository struct {
	drv *entsql.Driver
	now func() time.Time
}

// NewRepository wraps an open driver.
func NewRepository(drv *entsql.Driver) *Repository {
	return &Repository{drv: drv, now: time.Now}
}

func (r *Repository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

var (
	workspaceColumns = []string{"id", "user_id", "name", "created_at"}
	documentColumns  = []string{"id", "user_id", "workspace_id", "name", "type", "content", "created_at"}
)

func (r *Repository) CreateWorkspace(ctx context.Context, ws *rag.Workspace) error {
	ws.CreatedAt = r.now().UTC()
	query, args := r.builder().
		Insert(WorkspacesTable).
		Columns("user_id", "name", "created_at").
		Values(ws.UserID, ws.Name, ws.CreatedAt).
		Returning("id").
		Query()
	id, err := r.insertID(ctx, query, args)
	if err != nil {
		return fmt.Errorf("%w: could not create workspace: %w", rag.ErrStore, err)
	}
	ws.ID = id
	return nil
}

// ListWorkspaces returns the user's workspaces, newest first.
func (r *Repository) ListWorkspaces(ctx context.Context, userID int64) ([]rag.Workspace, error) {
	query, args := r.builder().
		Select(workspaceColumns...).
		From(entsql.Table(WorkspacesTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: could not list workspaces: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	var out []rag.Workspace
	for rows.Next() {
		var ws rag.Workspace
		if err := rows.Scan(&ws.ID, &ws.UserID, &ws.Name, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan workspace: %w", rag.ErrStore, err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
	}
	return out, nil
}

func (r *Repository) GetWorkspace(ctx context.Context, id int64) (*rag.Workspace, error) {
	query, args := r.builder().
		Select(workspaceColumns...).
		From(entsql.Table(WorkspacesTable)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: could not get workspace: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
		}
		return nil, fmt.Errorf("%w: workspace %d", rag.ErrNotFound, id)
	}
	var ws rag.Workspace
	if err := rows.Scan(&ws.ID, &ws.UserID, &ws.Name, &ws.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: scan workspace: %w", rag.ErrStore, err)
	}
	return &ws, nil
}

// DeleteWorkspace removes the workspace row. Documents and chunks go with it
// through the foreign key cascade.
func (r *Repository) DeleteWorkspace(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, WorkspacesTable, id)
}

func (r *Repository) CreateDocument(ctx context.Context, doc *rag.Document) error {
	doc.CreatedAt = r.now().UTC()
	query, args := r.builder().
		Insert(DocumentsTable).
		Columns("user_id", "workspace_id", "name", "type", "content", "created_at").
		Values(doc.UserID, doc.WorkspaceID, doc.Name, doc.Type, doc.Content, doc.CreatedAt).
		Returning("id").
		Query()
	id, err := r.insertID(ctx, query, args)
	if err != nil {
		return fmt.Errorf("%w: could not create document: %w", rag.ErrStore, err)
	}
	doc.ID = id
	return nil
}

// ListDocuments returns a workspace's documents, newest first. Content is not loaded.
func (r *Repository) ListDocuments(ctx context.Context, workspaceID int64) ([]rag.Document, error) {
	query, args := r.builder().
		Select("id", "user_id", "workspace_id", "name", "type", "created_at").
		From(entsql.Table(DocumentsTable)).
		Where(entsql.EQ("workspace_id", workspaceID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: could not list documents: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	var out []rag.Document
	for rows.Next() {
		var d rag.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.WorkspaceID, &d.Name, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document: %w", rag.ErrStore, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
	}
	return out, nil
}

func (r *Repository) GetDocument(ctx context.Context, id int64) (*rag.Document, error) {
	query, args := r.builder().
		Select(documentColumns...).
		From(entsql.Table(DocumentsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: could not get document: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
		}
		return nil, fmt.Errorf("%w: document %d", rag.ErrNotFound, id)
	}
	var (
		d       rag.Document
		content entsql.NullString
	)
	if err := rows.Scan(&d.ID, &d.UserID, &d.WorkspaceID, &d.Name, &d.Type, &content, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: scan document: %w", rag.ErrStore, err)
	}
	d.Content = content.String
	return &d, nil
}

// DeleteDocument removes the document row and, through the cascade, its chunks.
func (r *Repository) DeleteDocument(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, DocumentsTable, id)
}

func (r *Repository) insertID(ctx context.Context, query string, args []any) (int64, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("insert returned no id")
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}

func (r *Repository) deleteByID(ctx context.Context, table string, id int64) error {
	query, args := r.builder().
		Delete(table).
		Where(entsql.EQ("id", id)).
		Query()

	var res entsql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("%w: could not delete from %s: %w", rag.ErrStore, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", rag.ErrStore, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s row %d", rag.ErrNotFound, table, id)
	}
	return nil
}
