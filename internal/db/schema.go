package db

import (
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	WorkspacesTable = "workspaces"
	DocumentsTable  = "documents"
	ChunksTable     = "document_chunks"
)

// Tables describes the relational schema. dimensions fixes the width of the
// embedding column.
func Tables(dimensions int) []*schema.Table {
	workspaceColumns := []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeInt64},
		{Name: "name", Type: field.TypeString, Size: 255},
		{Name: "created_at", Type: field.TypeTime},
	}
	workspaces := &schema.Table{
		Name:       WorkspacesTable,
		Columns:    workspaceColumns,
		PrimaryKey: []*schema.Column{workspaceColumns[0]},
		Indexes: []*schema.Index{
			{Name: "workspaces_user_id", Columns: []*schema.Column{workspaceColumns[1]}},
		},
	}

	documentColumns := []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeInt64},
		{Name: "workspace_id", Type: field.TypeInt64},
		{Name: "name", Type: field.TypeString, Size: 255},
		{Name: "type", Type: field.TypeString, Size: 50},
		{Name: "content", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	documents := &schema.Table{
		Name:       DocumentsTable,
		Columns:    documentColumns,
		PrimaryKey: []*schema.Column{documentColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "documents_workspaces_documents",
				Columns:    []*schema.Column{documentColumns[2]},
				RefColumns: []*schema.Column{workspaceColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "documents_workspace_id", Columns: []*schema.Column{documentColumns[2]}},
		},
	}

	chunkColumns := []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "document_id", Type: field.TypeInt64},
		{Name: "workspace_id", Type: field.TypeInt64},
		{Name: "document_name", Type: field.TypeString, Size: 2147483647},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{
			Name:       "embedding",
			Type:       field.TypeOther,
			SchemaType: map[string]string{dialect.Postgres: fmt.Sprintf("vector(%d)", dimensions)},
		},
		{Name: "metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "user_id", Type: field.TypeInt64},
	}
	chunks := &schema.Table{
		Name:       ChunksTable,
		Columns:    chunkColumns,
		PrimaryKey: []*schema.Column{chunkColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "document_chunks_documents_chunks",
				Columns:    []*schema.Column{chunkColumns[1]},
				RefColumns: []*schema.Column{documentColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "document_chunks_workspaces_chunks",
				Columns:    []*schema.Column{chunkColumns[2]},
				RefColumns: []*schema.Column{workspaceColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "document_chunks_workspace_id_user_id", Columns: []*schema.Column{chunkColumns[2], chunkColumns[7]}},
			{Name: "document_chunks_document_id", Columns: []*schema.Column{chunkColumns[1]}},
		},
	}

	documents.ForeignKeys[0].RefTable = workspaces
	chunks.ForeignKeys[0].RefTable = documents
	chunks.ForeignKeys[1].RefTable = workspaces

	return []*schema.Table{workspaces, documents, chunks}
}
