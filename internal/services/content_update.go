package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

// ContentUpdateService attaches newly uploaded materials to the placeholder
// sessions of a course's active plan.
type ContentUpdateService struct {
	courses   CourseStore
	materials MaterialStore
	plans     PlanStore
	sessions  SessionStore
	locker    Locker
	publisher Publisher
	lockTTL   time.Duration
	lockWait  time.Duration
	log       *logger.Logger
}

// Content arrival waits this long for a concurrent plan generation on the
// same course before giving up with ErrLockHeld.
const (
	defaultLockWait   = 2 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

func NewContentUpdateService(
	courses CourseStore,
	materials MaterialStore,
	plans PlanStore,
	sessions SessionStore,
	locker Locker,
	publisher Publisher,
	lockTTL time.Duration,
	log *logger.Logger,
) *ContentUpdateService {
	if locker == nil {
		locker = newLocalLocker()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &ContentUpdateService{
		courses:   courses,
		materials: materials,
		plans:     plans,
		sessions:  sessions,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		lockWait:  defaultLockWait,
		log:       log.With("component", "content_update"),
	}
}

// ApplyContentArrival marks every pending session of the given week as
// uploaded and records materialID as one of its required materials. It
// mutates plan and sessions in place and returns the changed sessions.
// Awaiting sessions become scheduled.
func ApplyContentArrival(plan *models.StudyPlan, sessions []*models.StudySession, materialID uuid.UUID, week int) []*models.StudySession {
	var updated []*models.StudySession
	for _, s := range sessions {
		req := &s.ContentRequirements
		if req.WeekNumber != week || req.ContentStatus != models.ContentStatusPending {
			continue
		}
		req.RequiredMaterials = append(req.RequiredMaterials, materialID)
		req.ContentStatus = models.ContentStatusUploaded
		if s.Status == models.SessionStatusAwaitingContent {
			s.Status = models.SessionStatusScheduled
		}
		updated = append(updated, s)
	}
	if len(updated) == 0 {
		return nil
	}

	byNumber := make(map[int]*models.StudySession, len(updated))
	for _, s := range updated {
		byNumber[s.SessionNumber] = s
	}
	for i := range plan.PlanData.StudySessions {
		summary := &plan.PlanData.StudySessions[i]
		if s, ok := byNumber[summary.SessionNumber]; ok {
			summary.ContentRequirements = s.ContentRequirements
			summary.Status = s.Status
		}
	}
	if wb, ok := plan.PlanData.WeeklyBreakdown[week]; ok {
		wb.ContentStatus = models.WeekContentReady
	}
	return updated
}

// UpdatePlanWithNewContent applies a material that arrived for the given
// week to the course's active plan. Zero matching sessions is not an error.
func (s *ContentUpdateService) UpdatePlanWithNewContent(ctx context.Context, userID, courseID, materialID uuid.UUID, week int) (int, error) {
	if week < 1 {
		return 0, &ValidationError{Fields: map[string]string{"week_number": "Must be at least 1"}}
	}
	if _, err := loadOwnedCourse(ctx, s.courses, userID, courseID); err != nil {
		return 0, err
	}

	material, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		if isNoRows(err) {
			return 0, errMaterialNotFound()
		}
		return 0, err
	}
	if material.CourseID != courseID {
		return 0, errMaterialNotFound()
	}

	release, err := s.acquirePlanLock(ctx, courseID)
	if err != nil {
		return 0, err
	}
	defer release()

	plan, err := s.plans.GetActiveByCourse(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return 0, errNoStudyPlan()
		}
		return 0, err
	}

	sessions, err := s.sessions.ListByPlan(ctx, plan.ID)
	if err != nil {
		return 0, err
	}

	updated := ApplyContentArrival(plan, sessions, materialID, week)
	if len(updated) == 0 {
		s.log.Debug("no pending sessions for material", "course_id", courseID, "week", week)
		return 0, nil
	}

	if err := s.plans.SaveContentArrival(ctx, plan, updated); err != nil {
		return 0, fmt.Errorf("save content arrival: %w", err)
	}

	s.log.Info("content arrived", "course_id", courseID, "material_id", materialID, "week", week, "updated", len(updated))
	s.publisher.Publish(ctx, userID, models.WSTypeContentArrived, models.ContentArrivedEvent{
		CourseID:        courseID,
		MaterialID:      materialID,
		WeekNumber:      week,
		UpdatedSessions: len(updated),
	})
	return len(updated), nil
}

// acquirePlanLock retries a held course lock until lockWait passes or ctx
// ends.
func (s *ContentUpdateService) acquirePlanLock(ctx context.Context, courseID uuid.UUID) (func(), error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		release, err := s.locker.Acquire(ctx, planLockKey(courseID), s.lockTTL)
		if !errors.Is(err, ErrLockHeld) || !time.Now().Before(deadline) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(lockRetryInterval):
		}
	}
}

// OnMaterialAdded runs the content-arrival update for a week-tagged material.
// A course without a plan yet is not an error here.
func (s *ContentUpdateService) OnMaterialAdded(ctx context.Context, m *models.Material) (int, error) {
	if m.WeekNumber == nil {
		return 0, nil
	}
	n, err := s.UpdatePlanWithNewContent(ctx, m.UserID, m.CourseID, m.ID, *m.WeekNumber)
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.Code == CodeNoStudyPlanFound {
		return 0, nil
	}
	return n, err
}
