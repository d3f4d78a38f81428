package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

// EnqueueFunc hands an ingestion job to the worker queue.
type EnqueueFunc func(ctx context.Context, job *models.Job) error

type CourseHandler struct {
	courses     *services.CourseService
	content     *services.ContentUpdateService
	jobs        services.JobStore
	enqueue     EnqueueFunc
	storagePath string
	log         *logger.Logger
}

func NewCourseHandler(
	courses *services.CourseService,
	content *services.ContentUpdateService,
	jobs services.JobStore,
	enqueue EnqueueFunc,
	storagePath string,
	log *logger.Logger,
) *CourseHandler {
	return &CourseHandler{
		courses:     courses,
		content:     content,
		jobs:        jobs,
		enqueue:     enqueue,
		storagePath: storagePath,
		log:         log.With("component", "course_handler"),
	}
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := h.courses.CreateCourse(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	course, err := h.courses.GetCourse(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) AmendOutline(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.AmendOutlineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := h.courses.AmendOutline(r.Context(), middleware.GetUserID(r.Context()), courseID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	analysis, err := h.courses.AnalyzeCourse(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *CourseHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	materials, err := h.courses.ListMaterials(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"materials": materials})
}

// AddMaterial stores text material and immediately applies it to the plan
// when it is tagged with a week. If the plan stays locked the material is
// kept and the caller gets a conflict naming it.
func (h *CourseHandler) AddMaterial(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.AddMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		req.ContentType = "text"
	}
	req.FilePath = nil

	userID := middleware.GetUserID(r.Context())
	material, err := h.courses.AddMaterial(r.Context(), userID, courseID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.content.OnMaterialAdded(r.Context(), material)
	if err != nil {
		h.log.Warn("content arrival update failed", "material_id", material.ID, "error", err)
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			msg := fmt.Sprintf("Material %s was saved but the study plan is busy. Apply it with POST /courses/%s/study-plan/content.", material.ID, courseID)
			writeJSON(w, http.StatusConflict, errorResp(conflict.Code, msg, r))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"material":         material,
		"updated_sessions": updated,
	})
}

// Upload stores a document and queues it for text extraction.
func (h *CourseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if r.ContentLength > services.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 100MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 100MB limit", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeMalformedInput, "No file provided",
			map[string]string{"file": "Required"}, r))
		return
	}
	defer file.Close()

	if err := services.CheckUploadExtension(header.Filename); err != nil {
		handleServiceError(w, r, err)
		return
	}

	cfg := models.IngestionConfig{
		Filename: filepath.Base(header.Filename),
		Title:    strings.TrimSpace(r.FormValue("title")),
	}
	if raw := strings.TrimSpace(r.FormValue("week_number")); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil || week < 1 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeMalformedInput, "Validation failed",
				map[string]string{"week_number": "Must be a positive integer"}, r))
			return
		}
		cfg.WeekNumber = &week
	}
	for _, topic := range strings.Split(r.FormValue("topics"), ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			cfg.Topics = append(cfg.Topics, topic)
		}
	}

	userID := middleware.GetUserID(r.Context())
	if _, err := h.courses.GetCourse(r.Context(), userID, courseID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	cfg.FilePath = filepath.Join("users", userID.String(), "uploads", uuid.NewString()+ext)
	if err := h.saveUpload(file, cfg.FilePath); err != nil {
		h.log.Error("failed to store upload", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeInternal, "Failed to store file", r))
		return
	}

	configJSON, _ := json.Marshal(cfg)
	job := &models.Job{
		UserID:     userID,
		Type:       models.JobTypeMaterialIngestion,
		CourseID:   courseID,
		ConfigJSON: configJSON,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.log.Error("failed to create ingestion job", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeInternal, "Failed to queue file", r))
		return
	}
	if err := h.enqueue(r.Context(), job); err != nil {
		h.log.Error("failed to enqueue ingestion job", "job_id", job.ID, "error", err)
		h.jobs.UpdateStatus(r.Context(), job.ID, models.JobStatusFailed)
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeInternal, "Failed to queue file", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"filename": cfg.Filename,
		"status":   job.Status,
	})
}

func (h *CourseHandler) saveUpload(src io.Reader, rel string) error {
	full := filepath.Join(h.storagePath, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(full)
		return err
	}
	return dst.Close()
}
