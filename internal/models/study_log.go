package models

import (
	"time"

	"github.com/google/uuid"
)

// StudyLog is study time the user reports outside any plan session.
type StudyLog struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	CourseID        *uuid.UUID `json:"course_id,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Topics          []string   `json:"topics"`
	Score           *float64   `json:"score,omitempty"`
	LoggedAt        time.Time  `json:"logged_at"`
}

type RecordStudyLogRequest struct {
	DurationMinutes int        `json:"duration" validate:"required,min=1,max=1440"`
	Topics          []string   `json:"topics" validate:"omitempty,max=50,dive,required,max=200"`
	CourseID        *uuid.UUID `json:"course_id"`
	Score           *float64   `json:"score" validate:"omitempty,gte=0,lte=100"`
}
