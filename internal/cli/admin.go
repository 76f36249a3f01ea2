package cli

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"workspace-rag/internal/auth"
	"workspace-rag/internal/config"
	"workspace-rag/internal/db"
	"workspace-rag/services/qdrant"
)

func migrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and vector collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := st.cfg
			out := cmd.OutOrStdout()
			if cfg.Vector.Backend == config.BackendMemory {
				fmt.Fprintln(out, "Nothing to migrate for the memory backend.")
				return nil
			}

			ctx := cmd.Context()
			drv, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer drv.Close()

			if err := db.Migrate(ctx, drv, cfg.Embedding.Dimensions); err != nil {
				return err
			}
			fmt.Fprintf(out, "Postgres schema ready (vector(%d)).\n", cfg.Embedding.Dimensions)

			if cfg.Vector.Backend == config.BackendQdrant {
				store, err := qdrant.Connect(ctx, qdrant.Config{
					Host:       cfg.Vector.QdrantHost,
					Port:       cfg.Vector.QdrantPort,
					Collection: cfg.Vector.QdrantCollection,
					Dimensions: cfg.Embedding.Dimensions,
					Logger:     logrus.StandardLogger(),
				})
				if err != nil {
					return err
				}
				defer store.Close()
				fmt.Fprintf(out, "Qdrant collection %q ready.\n", cfg.Vector.QdrantCollection)
			}
			return nil
		},
	}
}

func tokenCmd(st *state) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := auth.NewTokens(st.cfg.JWTSecret)
			if err != nil {
				return err
			}
			signed, err := tokens.GenerateToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
