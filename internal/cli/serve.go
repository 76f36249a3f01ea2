package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"workspace-rag/internal/auth"
	"workspace-rag/internal/handlers"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := auth.NewTokens(st.cfg.JWTSecret)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, st, func(app *App) error {
				srv := &http.Server{
					Addr: st.cfg.HTTPAddr,
					Handler: handlers.NewRouter(handlers.Router{
						Tokens:     tokens,
						Workspaces: &handlers.WorkspaceHandler{Service: app.Workspaces},
						Documents:  &handlers.DocumentHandler{Service: app.Documents},
						Query:      handlers.NewQueryHandler(app.Query),
					}),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					logrus.WithField("address", srv.Addr).Info("server starting")
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				logrus.Info("server shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
}
