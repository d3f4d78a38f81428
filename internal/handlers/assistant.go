package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studybuddy-backend/internal/assistant"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/services"
)

// AssistantHandler lets the agent runtime invoke the study-plan tools over
// HTTP on behalf of the authenticated user.
type AssistantHandler struct {
	svc assistant.Services
	log *logger.Logger
}

func NewAssistantHandler(svc assistant.Services, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{svc: svc, log: log}
}

func (h *AssistantHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": assistant.Tools()})
}

// CallTool always answers 200 with a Result envelope; tool failures are
// reported inside it.
func (h *AssistantHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeMalformedInput, "Invalid request body", r))
		return
	}

	tk := assistant.New(h.svc, middleware.GetUserID(r.Context()), h.log)
	writeJSON(w, http.StatusOK, tk.Call(r.Context(), chi.URLParam(r, "name"), args))
}
