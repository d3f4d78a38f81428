package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

// ProgressService computes dashboard statistics from session state. Every
// call recomputes from the store.
type ProgressService struct {
	courses  CourseStore
	plans    PlanStore
	sessions SessionStore
	logs     StudyLogStore
	log      *logger.Logger
	now      func() time.Time
}

func NewProgressService(courses CourseStore, plans PlanStore, sessions SessionStore, logs StudyLogStore, log *logger.Logger) *ProgressService {
	return &ProgressService{
		courses:  courses,
		plans:    plans,
		sessions: sessions,
		logs:     logs,
		log:      log.With("component", "progress"),
		now:      time.Now,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percentage(done, total int) float64 {
	if total < 1 {
		total = 1
	}
	return math.Min(100, float64(done)/float64(total)*100)
}

// ComputeUserProgress aggregates the user's sessions and study logs as of
// now. Completed sessions from archived plans keep counting; pending sessions
// of archived plans are expected to be left out by the caller. Logs add study
// time, scores and active days but never count as sessions.
func ComputeUserProgress(sessions []*models.StudySession, logs []*models.StudyLog, totalCourses, activePlans int, now time.Time) models.UserProgress {
	p := models.UserProgress{
		TotalCourses:  totalCourses,
		ActivePlans:   activePlans,
		TotalSessions: len(sessions),
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	var (
		minutes    int
		scoreSum   float64
		scoreCount int
		recent     int
		days       = make(map[string]bool)
	)
	for _, s := range sessions {
		if s.ValidationScore != nil {
			scoreSum += *s.ValidationScore
			scoreCount++
		}
		if s.Status != models.SessionStatusCompleted {
			continue
		}
		p.CompletedSessions++
		minutes += s.EstimatedDuration
		if s.CompletedAt != nil {
			if !s.CompletedAt.Before(weekAgo) {
				recent++
			}
			days[s.CompletedAt.UTC().Format("2006-01-02")] = true
		}
	}
	for _, l := range logs {
		minutes += l.DurationMinutes
		if l.Score != nil {
			scoreSum += *l.Score
			scoreCount++
		}
		if !l.LoggedAt.Before(weekAgo) {
			recent++
		}
		days[l.LoggedAt.UTC().Format("2006-01-02")] = true
	}

	p.WeeklyProgress = recent * 10
	if p.WeeklyProgress > 100 {
		p.WeeklyProgress = 100
	}
	p.OverallProgress = round1(percentage(p.CompletedSessions, p.TotalSessions))
	p.TotalStudyTime = round1(float64(minutes) / 60)
	if scoreCount > 0 {
		p.AverageScore = round1(scoreSum / float64(scoreCount))
	}
	p.StudyStreak = studyStreak(days, now)
	return p
}

// studyStreak counts consecutive days with a completed session, ending today
// or yesterday.
func studyStreak(days map[string]bool, now time.Time) int {
	day := startOfDay(now.UTC())
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// ComputeCourseProgress reports completion for one plan's sessions. The next
// session is the earliest one still scheduled.
func ComputeCourseProgress(plan *models.StudyPlan, sessions []*models.StudySession) models.CourseProgress {
	p := models.CourseProgress{
		CourseID:      plan.CourseID,
		PlanID:        plan.ID,
		TotalSessions: len(sessions),
	}
	for _, s := range sessions {
		if s.Status == models.SessionStatusCompleted {
			p.CompletedSessions++
		}
		if s.Status != models.SessionStatusScheduled {
			continue
		}
		if p.NextSession == nil || s.ScheduledDate.Before(p.NextSession.ScheduledDate) ||
			(s.ScheduledDate.Equal(p.NextSession.ScheduledDate) && s.SessionNumber < p.NextSession.SessionNumber) {
			p.NextSession = s
		}
	}
	p.ProgressPercentage = round1(percentage(p.CompletedSessions, p.TotalSessions))
	return p
}

func (s *ProgressService) GetUserProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	totalCourses, err := s.courses.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	activePlans, err := s.plans.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListForProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := ComputeUserProgress(sessions, logs, totalCourses, activePlans, s.now())
	return &p, nil
}

// RecordStudyLog stores study time done outside any plan. A course, when
// given, must belong to the user.
func (s *ProgressService) RecordStudyLog(ctx context.Context, userID uuid.UUID, req models.RecordStudyLogRequest) (*models.StudyLog, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.CourseID != nil {
		if _, err := loadOwnedCourse(ctx, s.courses, userID, *req.CourseID); err != nil {
			return nil, err
		}
	}

	l := &models.StudyLog{
		UserID:          userID,
		CourseID:        req.CourseID,
		DurationMinutes: req.DurationMinutes,
		Topics:          req.Topics,
		Score:           req.Score,
		LoggedAt:        s.now().UTC(),
	}
	if err := s.logs.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create study log: %w", err)
	}

	s.log.Info("study time logged", "user_id", userID, "log_id", l.ID, "minutes", l.DurationMinutes)
	return l, nil
}

// GetCourseProgress requires an active plan and returns NoStudyPlanFound
// otherwise.
func (s *ProgressService) GetCourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*models.CourseProgress, error) {
	if _, err := loadOwnedCourse(ctx, s.courses, userID, courseID); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetActiveByCourse(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, errNoStudyPlan()
		}
		return nil, err
	}

	sessions, err := s.sessions.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	p := ComputeCourseProgress(plan, sessions)
	return &p, nil
}
