package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"workspace-rag/internal/query"
)

// QueryHandler answers questions about a workspace.
type QueryHandler struct {
	Service *query.Service
	md      goldmark.Markdown
}

// NewQueryHandler creates a QueryHandler that renders answers as HTML too.
func NewQueryHandler(svc *query.Service) *QueryHandler {
	return &QueryHandler{Service: svc, md: goldmark.New()}
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer     string   `json:"answer"`
	AnswerHTML string   `json:"answer_html"`
	Sources    []string `json:"sources"`
}

// Query handles POST /workspaces/{workspaceID}/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
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

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("handler: invalid input for Query")
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	answer, err := h.Service.Ask(r.Context(), query.Request{
		WorkspaceID: wsID,
		UserID:      uid,
		Question:    req.Question,
	})
	if err != nil {
		respondServiceError(w, log, err, "handler: failed to answer question")
		return
	}

	respondJSON(w, http.StatusOK, queryResponse{
		Answer:     answer.Text,
		AnswerHTML: h.render(log, answer.Text),
		Sources:    answer.Sources,
	})
}

// render converts a markdown answer to HTML. Raw HTML in the answer is
// omitted by goldmark's default renderer.
func (h *QueryHandler) render(log logrus.FieldLogger, text string) string {
	md := h.md
	if md == nil {
		md = goldmark.New()
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		log.WithError(err).Warn("handler: failed to render answer markdown")
		return ""
	}
	return buf.String()
}
