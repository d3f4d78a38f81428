package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanStatusActive   = "active"
	PlanStatusArchived = "archived"

	ContentSchedWeekly   = "weekly"
	ContentSchedBiweekly = "biweekly"
	ContentSchedMonthly  = "monthly"

	WeekContentPending = "pending"
	WeekContentReady   = "ready"
)

type StudyPlan struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	UserID    uuid.UUID `json:"user_id"`
	PlanData  PlanData  `json:"plan_data"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanData is the schedule document persisted with a plan.
type PlanData struct {
	CourseID           uuid.UUID              `json:"course_id"`
	CourseTitle        string                 `json:"course_title"`
	PlanOverview       PlanOverview           `json:"plan_overview"`
	StudySessions      []SessionSummary       `json:"study_sessions"`
	CalendarEvents     []CalendarEvent        `json:"calendar_events"`
	WeeklyBreakdown    map[int]*WeekBreakdown `json:"weekly_breakdown"`
	AssessmentSchedule []AssessmentItem       `json:"assessment_schedule"`
}

type PlanOverview struct {
	TotalWeeks              int        `json:"total_weeks"`
	SessionsPerWeek         int        `json:"sessions_per_week"`
	SessionDuration         int        `json:"session_duration"`
	PreferredTimes          []string   `json:"preferred_times"`
	ContentDeliverySchedule string     `json:"content_delivery_schedule"`
	TotalSessions           int        `json:"total_sessions"`
	StartDate               time.Time  `json:"start_date"`
	EstimatedCompletion     *time.Time `json:"estimated_completion"`
}

type SessionSummary struct {
	SessionNumber       int                 `json:"session_number"`
	Title               string              `json:"title"`
	ScheduledDate       time.Time           `json:"scheduled_date"`
	ScheduledTime       string              `json:"scheduled_time"`
	WeekNumber          int                 `json:"week_number"`
	Topics              []string            `json:"topics"`
	ContentRequirements ContentRequirements `json:"content_requirements"`
	EstimatedDuration   int                 `json:"estimated_duration"`
	Status              string              `json:"status"`
}

type CalendarEvent struct {
	SessionNumber   int       `json:"session_number"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Description     string    `json:"description"`
}

type WeekBreakdown struct {
	WeekNumber     int           `json:"week_number"`
	Sessions       []WeekSession `json:"sessions"`
	TotalStudyTime int           `json:"total_study_time"`
	ContentStatus  string        `json:"content_status"`
	TopicsCovered  []string      `json:"topics_covered"`
}

type WeekSession struct {
	SessionNumber int       `json:"session_number"`
	Title         string    `json:"title"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Duration      int       `json:"duration"`
}

type AssessmentItem struct {
	Week              int    `json:"week"`
	Type              string `json:"type"`
	Description       string `json:"description"`
	EstimatedDuration int    `json:"estimated_duration"`
}

// PlanPreferences are the caller-supplied generation options. Zero values
// select the defaults.
type PlanPreferences struct {
	DurationWeeks          int        `json:"duration_weeks" validate:"omitempty,min=1,max=104"`
	SessionsPerWeek        int        `json:"sessions_per_week" validate:"omitempty,min=1,max=14"`
	SessionDurationMinutes int        `json:"session_duration_minutes" validate:"omitempty,min=1,max=600"`
	PreferredTimes         []string   `json:"preferred_times" validate:"omitempty,dive,required"`
	ContentSchedule        string     `json:"content_schedule" validate:"omitempty,oneof=weekly biweekly monthly"`
	StartDate              *time.Time `json:"start_date"`
}

// PlanSummary is the short description returned with a freshly generated plan.
type PlanSummary struct {
	CourseTitle             string     `json:"course_title"`
	TotalSessions           int        `json:"total_sessions"`
	TotalWeeks              int        `json:"total_weeks"`
	SessionsPerWeek         int        `json:"sessions_per_week"`
	EstimatedTotalHours     float64    `json:"estimated_total_hours"`
	StartDate               time.Time  `json:"start_date"`
	CompletionDate          *time.Time `json:"completion_date"`
	ContentDeliverySchedule string     `json:"content_delivery_schedule"`
}

type GeneratedPlan struct {
	Plan     *StudyPlan      `json:"study_plan"`
	Summary  PlanSummary     `json:"summary"`
	Sessions []*StudySession `json:"sessions"`
}
