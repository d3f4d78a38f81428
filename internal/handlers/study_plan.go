package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

type StudyPlanHandler struct {
	plans    *services.PlanService
	content  *services.ContentUpdateService
	progress *services.ProgressService
}

func NewStudyPlanHandler(plans *services.PlanService, content *services.ContentUpdateService, progress *services.ProgressService) *StudyPlanHandler {
	return &StudyPlanHandler{plans: plans, content: content, progress: progress}
}

// Generate builds a new plan. An empty body uses every default.
func (h *StudyPlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var prefs models.PlanPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeMalformedInput, "Invalid request body", r))
		return
	}

	gen, err := h.plans.GenerateStudyPlan(r.Context(), middleware.GetUserID(r.Context()), courseID, prefs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gen)
}

func (h *StudyPlanHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	plan, sessions, err := h.plans.GetActivePlan(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"study_plan": plan,
		"sessions":   sessions,
	})
}

// ApplyContent attaches an existing material to the pending sessions of a week.
func (h *StudyPlanHandler) ApplyContent(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		MaterialID uuid.UUID `json:"material_id"`
		WeekNumber int       `json:"week_number"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.content.UpdatePlanWithNewContent(r.Context(), middleware.GetUserID(r.Context()), courseID, req.MaterialID, req.WeekNumber)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated_sessions": n})
}

func (h *StudyPlanHandler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.progress.GetCourseProgress(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StudyPlanHandler) UserProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.GetUserProgress(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RecordStudyLog records study time done outside any plan session.
func (h *StudyPlanHandler) RecordStudyLog(w http.ResponseWriter, r *http.Request) {
	var req models.RecordStudyLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.progress.RecordStudyLog(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}
