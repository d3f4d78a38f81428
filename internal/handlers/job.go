package handlers

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobStore
}

func NewJobHandler(jobs services.JobStore) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GetJob reports an ingestion job's progress to its owner.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp(services.CodeJobNotFound, "Job not found", r))
			return
		}
		handleServiceError(w, r, err)
		return
	}
	if job.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp(services.CodeJobNotFound, "Job not found", r))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
