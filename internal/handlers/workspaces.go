package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/workspaces"
)

// WorkspaceHandler handles HTTP requests for workspaces.
type WorkspaceHandler struct {
	Service *workspaces.Service
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

// CreateWorkspace handles POST /workspaces
func (h *WorkspaceHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.WithError(err).Warn("handler: invalid input for CreateWorkspace")
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ws, err := h.Service.Create(r.Context(), uid, req.Name)
	if err != nil {
		respondServiceError(w, logrus.WithField("user_id", uid), err, "handler: failed to create workspace")
		return
	}

	respondJSON(w, http.StatusCreated, ws)
}

// ListWorkspaces handles GET /workspaces
func (h *WorkspaceHandler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	list, err := h.Service.List(r.Context(), uid)
	if err != nil {
		respondServiceError(w, logrus.WithField("user_id", uid), err, "handler: failed to list workspaces")
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// GetWorkspace handles GET /workspaces/{workspaceID}
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	wsID, ok := idParam(w, r, "workspaceID")
	if !ok {
		return
	}

	ws, err := h.Service.Get(r.Context(), wsID, uid)
	if err != nil {
		respondServiceError(w, logrus.WithFields(logrus.Fields{
			"user_id":      uid,
			"workspace_id": wsID,
		}), err, "handler: failed to get workspace")
		return
	}

	respondJSON(w, http.StatusOK, ws)
}

// DeleteWorkspace handles DELETE /workspaces/{workspaceID}
func (h *WorkspaceHandler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	wsID, ok := idParam(w, r, "workspaceID")
	if !ok {
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"user_id":      uid,
		"workspace_id": wsID,
	})
	if err := h.Service.Delete(r.Context(), wsID, uid); err != nil {
		respondServiceError(w, log, err, "handler: failed to delete workspace")
		return
	}

	log.Info("handler: workspace deleted")
	w.WriteHeader(http.StatusNoContent)
}
