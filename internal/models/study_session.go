package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusScheduled       = "scheduled"
	SessionStatusAwaitingContent = "awaiting_content"
	SessionStatusInProgress      = "in_progress"
	SessionStatusCompleted       = "completed"
	SessionStatusSkipped         = "skipped"

	ContentStatusPending  = "pending"
	ContentStatusUploaded = "uploaded"
)

type StudySession struct {
	ID                  uuid.UUID           `json:"id"`
	PlanID              uuid.UUID           `json:"plan_id"`
	CourseID            uuid.UUID           `json:"course_id"`
	UserID              uuid.UUID           `json:"user_id"`
	SessionNumber       int                 `json:"session_number"`
	Title               string              `json:"title"`
	Topics              []string            `json:"topics"`
	ScheduledDate       time.Time           `json:"scheduled_date"`
	ScheduledTime       string              `json:"scheduled_time"`
	EstimatedDuration   int                 `json:"estimated_duration"`
	ContentRequirements ContentRequirements `json:"content_requirements"`
	StudyGuide          StudyGuide          `json:"study_guide"`
	Status              string              `json:"status"`
	CompletedAt         *time.Time          `json:"completed_at"`
	ValidationScore     *float64            `json:"validation_score"`
	Notes               string              `json:"notes"`
	ReminderSentAt      *time.Time          `json:"-"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// ContentRequirements records which materials a session needs and whether
// they have arrived.
type ContentRequirements struct {
	RequiredMaterials    []uuid.UUID `json:"required_materials"`
	ContentStatus        string      `json:"content_status"`
	WeekNumber           int         `json:"week_number"`
	MaterialTitle        string      `json:"material_title,omitempty"`
	ExpectedContent      string      `json:"expected_content,omitempty"`
	EstimatedReadingTime string      `json:"estimated_reading_time,omitempty"`
}

type StudyGuide struct {
	Overview            GuideOverview   `json:"session_overview"`
	PreSessionPrep      []string        `json:"pre_session_preparation"`
	DetailedActivities  []GuideActivity `json:"detailed_activities"`
	LearningObjectives  []string        `json:"learning_objectives"`
	SuccessCriteria     []string        `json:"success_criteria"`
	ResourcesNeeded     []string        `json:"resources_needed"`
	HomeworkAssignments []string        `json:"homework_assignments"`
}

type GuideOverview struct {
	DurationMinutes int      `json:"duration_minutes"`
	FocusAreas      []string `json:"focus_areas"`
	DifficultyLevel string   `json:"difficulty_level"`
	PreparationTime string   `json:"preparation_time"`
}

type GuideActivity struct {
	Phase           string   `json:"phase"`
	DurationMinutes int      `json:"duration_minutes"`
	Activities      []string `json:"activities"`
}

type CompleteSessionRequest struct {
	ValidationScore *float64 `json:"validation_score" validate:"omitempty,gte=0,lte=100"`
	Notes           *string  `json:"notes" validate:"omitempty,max=5000"`
}

type UserProgress struct {
	TotalCourses      int     `json:"totalCourses"`
	ActivePlans       int     `json:"activePlans"`
	CompletedSessions int     `json:"completedSessions"`
	TotalSessions     int     `json:"totalSessions"`
	WeeklyProgress    int     `json:"weeklyProgress"`
	StudyStreak       int     `json:"studyStreak"`
	OverallProgress   float64 `json:"overallProgress"`
	TotalStudyTime    float64 `json:"totalStudyTime"`
	AverageScore      float64 `json:"averageScore"`
}

type CourseProgress struct {
	CourseID           uuid.UUID     `json:"course_id"`
	PlanID             uuid.UUID     `json:"plan_id"`
	TotalSessions      int           `json:"total_sessions"`
	CompletedSessions  int           `json:"completed_sessions"`
	ProgressPercentage float64       `json:"progress_percentage"`
	NextSession        *StudySession `json:"next_session"`
}
