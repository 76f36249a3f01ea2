package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"workspace-rag/internal/documents"
	"workspace-rag/internal/query"
)

func ingestCmd(st *state) *cobra.Command {
	var (
		userID, workspaceID int64
		mimeType            string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Upload a PDF or text file into a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if mimeType == "" {
				mimeType = http.DetectContentType(data)
			}

			return withApp(cmd, st, func(app *App) error {
				res, err := app.Documents.Upload(cmd.Context(), documents.UploadRequest{
					WorkspaceID: workspaceID,
					UserID:      userID,
					FileName:    filepath.Base(path),
					MIMEType:    mimeType,
					Data:        data,
				})
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s as document %d: %d/%d chunks stored (%d embedded)\n",
					filepath.Base(path), res.DocumentID, res.ChunksStored, res.ChunksTotal, res.ChunksEmbedded)
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().Int64Var(&workspaceID, "workspace", 0, "target workspace id")
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type (detected from content when empty)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func askCmd(st *state) *cobra.Command {
	var userID, workspaceID int64
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about a workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, st, func(app *App) error {
				answer, err := app.Query.Ask(cmd.Context(), query.Request{
					WorkspaceID: workspaceID,
					UserID:      userID,
					Question:    strings.Join(args, " "),
				})
				if err != nil {
					return fmt.Errorf("failed to answer: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answer.Text)
				if len(answer.Sources) > 0 {
					fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
				}
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().Int64Var(&workspaceID, "workspace", 0, "workspace to search")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
