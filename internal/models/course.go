package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Outline      CourseOutline   `json:"course_outline"`
	MetadataJSON json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CourseOutline is the free-form syllabus document stored with a course.
type CourseOutline struct {
	Title                   string           `json:"title"`
	Description             string           `json:"description"`
	RawOutline              string           `json:"raw_outline"`
	Weeks                   []OutlineWeek    `json:"weeks"`
	Topics                  []string         `json:"topics"`
	LearningObjectives      []string         `json:"learning_objectives"`
	AssessmentSchedule      []AssessmentItem `json:"assessment_schedule"`
	ContentDeliverySchedule string           `json:"content_delivery_schedule"`
}

type OutlineWeek struct {
	WeekNumber int      `json:"week_number"`
	Title      string   `json:"title"`
	Topics     []string `json:"topics"`
}

type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Outline     string `json:"outline"`
}

// AmendOutlineRequest replaces the structured parts of a course outline.
// Nil fields are left untouched.
type AmendOutlineRequest struct {
	RawOutline              *string          `json:"raw_outline"`
	Weeks                   []OutlineWeek    `json:"weeks"`
	Topics                  []string         `json:"topics"`
	LearningObjectives      []string         `json:"learning_objectives"`
	AssessmentSchedule      []AssessmentItem `json:"assessment_schedule"`
	ContentDeliverySchedule *string          `json:"content_delivery_schedule" validate:"omitempty,oneof=weekly biweekly monthly"`
}

// CourseAnalysis is the keyword-based structure scan of course text.
type CourseAnalysis struct {
	TopicsIdentified     []string `json:"topics_identified"`
	LearningObjectives   []string `json:"learning_objectives"`
	KeyConcepts          []string `json:"key_concepts"`
	Prerequisites        []string `json:"prerequisites"`
	DifficultyLevel      string   `json:"difficulty_level"`
	EstimatedHours       int      `json:"estimated_hours"`
	TotalLines           int      `json:"total_lines"`
	ContentSections      int      `json:"content_sections"`
	OutlineSections      int      `json:"outline_sections"`
	StudyRecommendations []string `json:"study_recommendations"`
	Summary              string   `json:"analysis_summary"`
}
