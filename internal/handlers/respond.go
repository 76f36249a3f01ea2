package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"workspace-rag/internal/auth"
	"workspace-rag/internal/rag"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("handler: failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps the pipeline error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidInput), errors.Is(err, rag.ErrUnsupportedInput):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, rag.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, rag.ErrGeneration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError logs server-side failures and writes the public message.
func respondServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error(msg)
	} else {
		log.WithError(err).Warn(msg)
	}
	respondError(w, status, rag.PublicMessage(err))
}

// userID pulls the authenticated user from the request. It writes a 401 when absent.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
