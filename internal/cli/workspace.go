package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func workspaceCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}
	cmd.AddCommand(workspaceCreateCmd(st))
	cmd.AddCommand(workspaceListCmd(st))
	cmd.AddCommand(workspaceDeleteCmd(st))
	return cmd
}

func userFlag(cmd *cobra.Command, dst *int64) {
	cmd.Flags().Int64Var(dst, "user", 0, "id of the acting user")
	_ = cmd.MarkFlagRequired("user")
}

func workspaceCreateCmd(st *state) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, st, func(app *App) error {
				ws, err := app.Workspaces.Create(cmd.Context(), userID, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("failed to create workspace: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %d: %s\n", ws.ID, ws.Name)
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	return cmd
}

func workspaceListCmd(st *state) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, st, func(app *App) error {
				list, err := app.Workspaces.List(cmd.Context(), userID)
				if err != nil {
					return fmt.Errorf("failed to list workspaces: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No workspaces found.")
					return nil
				}
				for _, ws := range list {
					fmt.Fprintf(out, "  %d\t%s\t%s\n", ws.ID, ws.Name, ws.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				fmt.Fprintf(out, "Total: %d workspaces\n", len(list))
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	return cmd
}

func workspaceDeleteCmd(st *state) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "delete [workspace-id]",
		Short: "Delete a workspace with its documents and chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid workspace id %q", args[0])
			}
			return withApp(cmd, st, func(app *App) error {
				if err := app.Workspaces.Delete(cmd.Context(), wsID, userID); err != nil {
					return fmt.Errorf("failed to delete workspace: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted workspace %d\n", wsID)
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	return cmd
}
