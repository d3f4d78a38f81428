package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeMaterialIngestion = "material-ingestion"

	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	CourseID     uuid.UUID       `json:"course_id"`
	MaterialID   *uuid.UUID      `json:"material_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// IngestionConfig is stored in a job's config column.
type IngestionConfig struct {
	FilePath   string   `json:"file_path"`
	Filename   string   `json:"filename"`
	Title      string   `json:"title"`
	WeekNumber *int     `json:"week_number,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// WebSocket message types
const (
	WSTypeStatusUpdate     = "status_update"
	WSTypeJobCompleted     = "job_completed"
	WSTypeJobFailed        = "job_failed"
	WSTypePlanGenerated    = "plan_generated"
	WSTypeContentArrived   = "content_arrived"
	WSTypeSessionCompleted = "session_completed"
	WSTypeSessionReminder  = "session_reminder"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultID   uuid.UUID `json:"result_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

type PlanEvent struct {
	PlanID        uuid.UUID `json:"plan_id"`
	CourseID      uuid.UUID `json:"course_id"`
	TotalSessions int       `json:"total_sessions"`
}

type ContentArrivedEvent struct {
	CourseID        uuid.UUID `json:"course_id"`
	MaterialID      uuid.UUID `json:"material_id"`
	WeekNumber      int       `json:"week_number"`
	UpdatedSessions int       `json:"updated_sessions"`
}

type SessionEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	CourseID      uuid.UUID `json:"course_id"`
	Title         string    `json:"title"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ScheduledTime string    `json:"scheduled_time,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
