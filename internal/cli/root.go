// Package cli implements the workspace-rag command line.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"workspace-rag/internal/config"
)

// state carries the loaded configuration from the root command to its children.
type state struct {
	cfg config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:           "workspace-rag",
		Short:         "Ask questions about the documents in your workspaces",
		Long:          "workspace-rag ingests PDF and text files into per-user workspaces and answers questions from them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			st.cfg = cfg
			return nil
		},
	}

	root.AddCommand(serveCmd(st))
	root.AddCommand(migrateCmd(st))
	root.AddCommand(tokenCmd(st))
	root.AddCommand(workspaceCmd(st))
	root.AddCommand(ingestCmd(st))
	root.AddCommand(askCmd(st))
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}

// withApp builds the services, runs fn and closes the connections.
func withApp(cmd *cobra.Command, st *state, fn func(app *App) error) error {
	app, err := buildApp(cmd.Context(), st.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logrus.WithError(err).Warn("cli: failed to close connections")
		}
	}()
	return fn(app)
}
