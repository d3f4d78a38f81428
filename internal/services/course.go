package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

// CourseService is the course and material registry. Every operation checks
// that the caller owns the course.
type CourseService struct {
	courses   CourseStore
	materials MaterialStore
	log       *logger.Logger
}

func NewCourseService(courses CourseStore, materials MaterialStore, log *logger.Logger) *CourseService {
	return &CourseService{
		courses:   courses,
		materials: materials,
		log:       log.With("component", "registry"),
	}
}

func loadOwnedCourse(ctx context.Context, courses CourseStore, userID, courseID uuid.UUID) (*models.Course, error) {
	course, err := courses.GetByID(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, errCourseNotFound()
		}
		return nil, err
	}
	if course.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this course"}
	}
	return course, nil
}

func (s *CourseService) CreateCourse(ctx context.Context, userID uuid.UUID, req models.CreateCourseRequest) (*models.Course, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	course := &models.Course{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Outline: models.CourseOutline{
			Title:                   req.Title,
			Description:             req.Description,
			RawOutline:              req.Outline,
			Weeks:                   []models.OutlineWeek{},
			Topics:                  []string{},
			LearningObjectives:      []string{},
			AssessmentSchedule:      []models.AssessmentItem{},
			ContentDeliverySchedule: DefaultContentSchedule,
		},
		MetadataJSON: json.RawMessage("{}"),
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	s.log.Info("course created", "course_id", course.ID, "user_id", userID)
	return course, nil
}

func (s *CourseService) GetCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Course, error) {
	return loadOwnedCourse(ctx, s.courses, userID, courseID)
}

// ListCourses returns the user's courses, newest first.
func (s *CourseService) ListCourses(ctx context.Context, userID uuid.UUID) ([]*models.Course, error) {
	return s.courses.ListByUser(ctx, userID)
}

// AmendOutline replaces the outline fields present in req. The course's
// title and description stay as created.
func (s *CourseService) AmendOutline(ctx context.Context, userID, courseID uuid.UUID, req models.AmendOutlineRequest) (*models.Course, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	course, err := loadOwnedCourse(ctx, s.courses, userID, courseID)
	if err != nil {
		return nil, err
	}

	outline := course.Outline
	if req.RawOutline != nil {
		outline.RawOutline = *req.RawOutline
	}
	if req.Weeks != nil {
		outline.Weeks = req.Weeks
	}
	if req.Topics != nil {
		outline.Topics = req.Topics
	}
	if req.LearningObjectives != nil {
		outline.LearningObjectives = req.LearningObjectives
	}
	if req.AssessmentSchedule != nil {
		outline.AssessmentSchedule = req.AssessmentSchedule
	}
	if req.ContentDeliverySchedule != nil {
		outline.ContentDeliverySchedule = *req.ContentDeliverySchedule
	}

	if err := s.courses.UpdateOutline(ctx, courseID, outline); err != nil {
		if isNoRows(err) {
			return nil, errCourseNotFound()
		}
		return nil, err
	}
	course.Outline = outline
	return course, nil
}

// AddMaterial inserts a material for the course. Materials are never
// updated after insert.
func (s *CourseService) AddMaterial(ctx context.Context, userID, courseID uuid.UUID, req models.AddMaterialRequest) (*models.Material, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if _, err := loadOwnedCourse(ctx, s.courses, userID, courseID); err != nil {
		return nil, err
	}

	topics := req.Topics
	if topics == nil {
		topics = []string{}
	}
	meta := req.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}

	material := &models.Material{
		CourseID:     courseID,
		UserID:       userID,
		Title:        req.Title,
		ContentType:  req.ContentType,
		ContentText:  req.ContentText,
		FilePath:     req.FilePath,
		WeekNumber:   req.WeekNumber,
		Topics:       topics,
		MetadataJSON: meta,
	}
	if err := s.materials.Create(ctx, material); err != nil {
		return nil, fmt.Errorf("add material: %w", err)
	}

	s.log.Info("material added", "material_id", material.ID, "course_id", courseID, "week", material.WeekNumber)
	return material, nil
}

func (s *CourseService) ListMaterials(ctx context.Context, userID, courseID uuid.UUID) ([]*models.Material, error) {
	if _, err := loadOwnedCourse(ctx, s.courses, userID, courseID); err != nil {
		return nil, err
	}
	return s.materials.ListByCourse(ctx, courseID)
}

func (s *CourseService) GetMaterial(ctx context.Context, userID, materialID uuid.UUID) (*models.Material, error) {
	m, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		if isNoRows(err) {
			return nil, errMaterialNotFound()
		}
		return nil, err
	}
	if m.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this material"}
	}
	return m, nil
}

// AnalyzeCourse runs the keyword scan over the course's materials and outline.
func (s *CourseService) AnalyzeCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.CourseAnalysis, error) {
	course, err := loadOwnedCourse(ctx, s.courses, userID, courseID)
	if err != nil {
		return nil, err
	}
	materials, err := s.materials.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(materials)+1)
	if course.Description != "" {
		texts = append(texts, course.Description)
	}
	for _, m := range materials {
		if m.ContentText != "" {
			texts = append(texts, m.ContentText)
		}
	}

	analysis := AnalyzeCourseContent(strings.Join(texts, "\n"), course.Outline.RawOutline)
	return &analysis, nil
}
