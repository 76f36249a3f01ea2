// Package handlers exposes the workspace, document and query services over HTTP.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"workspace-rag/internal/auth"
)

// Router bundles the handlers served by NewRouter.
type Router struct {
	Tokens     *auth.Tokens
	Workspaces *WorkspaceHandler
	Documents  *DocumentHandler
	Query      *QueryHandler
}

// NewRouter registers the public and protected routes.
func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Protected Routes ---
	r.Group(func(protected chi.Router) {
		protected.Use(rt.Tokens.Middleware)

		protected.Route("/workspaces", func(r chi.Router) {
			r.Post("/", rt.Workspaces.CreateWorkspace)
			r.Get("/", rt.Workspaces.ListWorkspaces)

			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Get("/", rt.Workspaces.GetWorkspace)
				r.Delete("/", rt.Workspaces.DeleteWorkspace)
				r.Post("/query", rt.Query.Query)

				r.Route("/documents", func(r chi.Router) {
					r.Post("/", rt.Documents.UploadDocument)
					r.Get("/", rt.Documents.ListDocuments)

					r.Route("/{documentID}", func(r chi.Router) {
						r.Get("/", rt.Documents.GetDocument)
						r.Delete("/", rt.Documents.DeleteDocument)
					})
				})
			})
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("http: request served")
	})
}
