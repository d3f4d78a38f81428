package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

const (
	DefaultDurationWeeks   = 12
	DefaultSessionsPerWeek = 3
	DefaultSessionMinutes  = 90
	DefaultContentSchedule = models.ContentSchedBiweekly
	DefaultPreferredTime   = "evening"

	eveningStartHour = 19
	morningStartHour = 9
)

// weekdayCycle holds day offsets from the start of a study week
// (Monday, Wednesday, Friday).
var weekdayCycle = [...]int{0, 2, 4}

// slotOffset is the day offset of the given 0-based slot within a study
// week. Busier weeks are spread evenly over the seven days so that offsets
// never decrease and never leave the week.
func slotOffset(slot, sessionsPerWeek int) int {
	if sessionsPerWeek <= len(weekdayCycle) {
		return weekdayCycle[slot]
	}
	return slot * 7 / sessionsPerWeek
}

// PlanConfig is the fully resolved set of generation options.
type PlanConfig struct {
	DurationWeeks   int
	SessionsPerWeek int
	SessionDuration int
	PreferredTimes  []string
	ContentSchedule string
	StartDate       time.Time
}

// ResolvePlanConfig validates prefs and fills defaults. The course outline's
// delivery cadence is used when prefs leave it unset.
func ResolvePlanConfig(prefs models.PlanPreferences, outline models.CourseOutline, now time.Time) (PlanConfig, error) {
	if err := validateStruct(prefs); err != nil {
		return PlanConfig{}, err
	}

	cfg := PlanConfig{
		DurationWeeks:   prefs.DurationWeeks,
		SessionsPerWeek: prefs.SessionsPerWeek,
		SessionDuration: prefs.SessionDurationMinutes,
		PreferredTimes:  prefs.PreferredTimes,
		ContentSchedule: prefs.ContentSchedule,
	}
	if cfg.DurationWeeks == 0 {
		cfg.DurationWeeks = DefaultDurationWeeks
	}
	if cfg.SessionsPerWeek == 0 {
		cfg.SessionsPerWeek = DefaultSessionsPerWeek
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultSessionMinutes
	}
	if len(cfg.PreferredTimes) == 0 {
		cfg.PreferredTimes = []string{DefaultPreferredTime}
	}
	if cfg.ContentSchedule == "" {
		cfg.ContentSchedule = DefaultContentSchedule
		if deliveryInterval(outline.ContentDeliverySchedule) > 0 {
			cfg.ContentSchedule = outline.ContentDeliverySchedule
		}
	}
	if prefs.StartDate != nil {
		cfg.StartDate = prefs.StartDate.UTC()
	} else {
		cfg.StartDate = startOfDay(now.UTC())
	}
	return cfg, nil
}

// deliveryInterval maps a content schedule to its cadence in weeks, or 0 for
// an unknown schedule.
func deliveryInterval(schedule string) int {
	switch schedule {
	case models.ContentSchedWeekly:
		return 1
	case models.ContentSchedBiweekly:
		return 2
	case models.ContentSchedMonthly:
		return 4
	default:
		return 0
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BuildPlan deterministically lays out the sessions of a study plan. With
// materials present it emits one session per material in list order;
// otherwise it emits placeholder sessions on the content delivery cadence.
// The returned sessions carry no ids; those are assigned on insert.
func BuildPlan(course *models.Course, materials []*models.Material, cfg PlanConfig) (models.PlanData, []*models.StudySession) {
	var sessions []*models.StudySession
	if len(materials) > 0 {
		sessions = materialSessions(materials, cfg)
	} else {
		sessions = placeholderSessions(cfg)
	}

	startHour := morningStartHour
	if containsString(cfg.PreferredTimes, "evening") {
		startHour = eveningStartHour
	}

	data := models.PlanData{
		CourseID:    course.ID,
		CourseTitle: course.Title,
		PlanOverview: models.PlanOverview{
			TotalWeeks:              cfg.DurationWeeks,
			SessionsPerWeek:         cfg.SessionsPerWeek,
			SessionDuration:         cfg.SessionDuration,
			PreferredTimes:          cfg.PreferredTimes,
			ContentDeliverySchedule: cfg.ContentSchedule,
			TotalSessions:           len(sessions),
			StartDate:               cfg.StartDate,
		},
		StudySessions:   make([]models.SessionSummary, 0, len(sessions)),
		CalendarEvents:  make([]models.CalendarEvent, 0, len(sessions)),
		WeeklyBreakdown: make(map[int]*models.WeekBreakdown),
	}

	for _, s := range sessions {
		s.CourseID = course.ID
		s.UserID = course.UserID
		focus := guideFocus(s)
		s.StudyGuide = buildStudyGuide(focus, cfg.SessionDuration)

		week := s.ContentRequirements.WeekNumber
		data.StudySessions = append(data.StudySessions, models.SessionSummary{
			SessionNumber:       s.SessionNumber,
			Title:               s.Title,
			ScheduledDate:       s.ScheduledDate,
			ScheduledTime:       s.ScheduledTime,
			WeekNumber:          week,
			Topics:              s.Topics,
			ContentRequirements: s.ContentRequirements,
			EstimatedDuration:   s.EstimatedDuration,
			Status:              s.Status,
		})

		data.CalendarEvents = append(data.CalendarEvents, models.CalendarEvent{
			SessionNumber:   s.SessionNumber,
			Title:           "Study Session: " + focus,
			StartTime:       startOfDay(s.ScheduledDate).Add(time.Duration(startHour) * time.Hour),
			DurationMinutes: s.EstimatedDuration,
			Description:     fmt.Sprintf("Study session for %s - %s", course.Title, focus),
		})

		wb, ok := data.WeeklyBreakdown[week]
		if !ok {
			wb = &models.WeekBreakdown{
				WeekNumber:    week,
				Sessions:      []models.WeekSession{},
				ContentStatus: models.WeekContentPending,
				TopicsCovered: []string{},
			}
			data.WeeklyBreakdown[week] = wb
		}
		wb.Sessions = append(wb.Sessions, models.WeekSession{
			SessionNumber: s.SessionNumber,
			Title:         s.Title,
			ScheduledDate: s.ScheduledDate,
			Duration:      s.EstimatedDuration,
		})
		wb.TotalStudyTime += s.EstimatedDuration
		wb.TopicsCovered = append(wb.TopicsCovered, s.Topics...)
		// Any uploaded session marks the whole week ready.
		if s.ContentRequirements.ContentStatus == models.ContentStatusUploaded {
			wb.ContentStatus = models.WeekContentReady
		}
	}

	if n := len(sessions); n > 0 {
		last := sessions[n-1].ScheduledDate
		data.PlanOverview.EstimatedCompletion = &last
	}

	data.AssessmentSchedule = assessmentSchedule(cfg.DurationWeeks)
	return data, sessions
}

func materialSessions(materials []*models.Material, cfg PlanConfig) []*models.StudySession {
	sessions := make([]*models.StudySession, 0, len(materials))
	for i, m := range materials {
		k := i + 1
		week := (k-1)/cfg.SessionsPerWeek + 1
		offset := slotOffset((k-1)%cfg.SessionsPerWeek, cfg.SessionsPerWeek)

		topics := m.Topics
		if len(topics) == 0 {
			topics = []string{"Topics from " + m.Title}
		}

		sessions = append(sessions, &models.StudySession{
			SessionNumber:     k,
			Title:             fmt.Sprintf("Session %d: %s", k, m.Title),
			Topics:            append([]string(nil), topics...),
			ScheduledDate:     addDays(cfg.StartDate, 7*(week-1)+offset),
			ScheduledTime:     cfg.PreferredTimes[0],
			EstimatedDuration: cfg.SessionDuration,
			ContentRequirements: models.ContentRequirements{
				RequiredMaterials:    []uuid.UUID{m.ID},
				ContentStatus:        models.ContentStatusUploaded,
				WeekNumber:           week,
				MaterialTitle:        m.Title,
				EstimatedReadingTime: "30-45 minutes",
			},
			Status: models.SessionStatusScheduled,
		})
	}
	return sessions
}

func placeholderSessions(cfg PlanConfig) []*models.StudySession {
	interval := deliveryInterval(cfg.ContentSchedule)
	if interval == 0 {
		interval = deliveryInterval(DefaultContentSchedule)
	}
	limit := cfg.DurationWeeks * cfg.SessionsPerWeek

	var sessions []*models.StudySession
	for week := 1; week <= cfg.DurationWeeks; week += interval {
		for slot := 0; slot < cfg.SessionsPerWeek; slot++ {
			if len(sessions) >= limit {
				return sessions
			}
			k := len(sessions) + 1
			sessions = append(sessions, &models.StudySession{
				SessionNumber:     k,
				Title:             fmt.Sprintf("Session %d: Week %d Content", k, week),
				Topics:            []string{fmt.Sprintf("Week %d topics (to be updated when content is uploaded)", week)},
				ScheduledDate:     addDays(cfg.StartDate, 7*(week-1)+slotOffset(slot, cfg.SessionsPerWeek)),
				ScheduledTime:     cfg.PreferredTimes[slot%len(cfg.PreferredTimes)],
				EstimatedDuration: cfg.SessionDuration,
				ContentRequirements: models.ContentRequirements{
					RequiredMaterials: []uuid.UUID{},
					ContentStatus:     models.ContentStatusPending,
					WeekNumber:        week,
					ExpectedContent:   fmt.Sprintf("Week %d course materials", week),
				},
				Status: models.SessionStatusAwaitingContent,
				Notes:  "Waiting for course content to be uploaded",
			})
		}
	}
	return sessions
}

// guideFocus is the subject a session's guide and calendar entry refer to.
func guideFocus(s *models.StudySession) string {
	if s.ContentRequirements.MaterialTitle != "" {
		return s.ContentRequirements.MaterialTitle
	}
	return fmt.Sprintf("Week %d Content", s.ContentRequirements.WeekNumber)
}

// assessmentSchedule is fixed at weeks 4, 8 and the final week regardless of
// plan length.
func assessmentSchedule(totalWeeks int) []models.AssessmentItem {
	return []models.AssessmentItem{
		{Week: 4, Type: "Mid-term Review", Description: "Comprehensive review of weeks 1-4", EstimatedDuration: 120},
		{Week: 8, Type: "Progress Assessment", Description: "Skills assessment and knowledge check", EstimatedDuration: 90},
		{Week: totalWeeks, Type: "Final Review", Description: "Complete course review and preparation", EstimatedDuration: 180},
	}
}

func planSummary(data models.PlanData) models.PlanSummary {
	o := data.PlanOverview
	return models.PlanSummary{
		CourseTitle:             data.CourseTitle,
		TotalSessions:           o.TotalSessions,
		TotalWeeks:              o.TotalWeeks,
		SessionsPerWeek:         o.SessionsPerWeek,
		EstimatedTotalHours:     float64(o.TotalSessions*o.SessionDuration) / 60,
		StartDate:               o.StartDate,
		CompletionDate:          o.EstimatedCompletion,
		ContentDeliverySchedule: o.ContentDeliverySchedule,
	}
}

// PlanService generates and reads study plans.
type PlanService struct {
	courses   CourseStore
	materials MaterialStore
	plans     PlanStore
	sessions  SessionStore
	locker    Locker
	publisher Publisher
	lockTTL   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewPlanService(
	courses CourseStore,
	materials MaterialStore,
	plans PlanStore,
	sessions SessionStore,
	locker Locker,
	publisher Publisher,
	lockTTL time.Duration,
	log *logger.Logger,
) *PlanService {
	if locker == nil {
		locker = newLocalLocker()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &PlanService{
		courses:   courses,
		materials: materials,
		plans:     plans,
		sessions:  sessions,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		log:       log.With("component", "planner"),
		now:       time.Now,
	}
}

func planLockKey(courseID uuid.UUID) string {
	return "plan_lock:" + courseID.String()
}

// GenerateStudyPlan builds a plan from the course's materials and stores it
// with its sessions as one unit, archiving any previous active plan.
func (s *PlanService) GenerateStudyPlan(ctx context.Context, userID, courseID uuid.UUID, prefs models.PlanPreferences) (*models.GeneratedPlan, error) {
	course, err := loadOwnedCourse(ctx, s.courses, userID, courseID)
	if err != nil {
		return nil, err
	}

	cfg, err := ResolvePlanConfig(prefs, course.Outline, s.now())
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, planLockKey(courseID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	materials, err := s.materials.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}

	data, sessions := BuildPlan(course, materials, cfg)
	plan := &models.StudyPlan{
		CourseID: course.ID,
		UserID:   course.UserID,
		PlanData: data,
	}
	if err := s.plans.CreateWithSessions(ctx, plan, sessions); err != nil {
		return nil, fmt.Errorf("store study plan: %w", err)
	}

	s.log.Info("study plan generated",
		"plan_id", plan.ID,
		"course_id", courseID,
		"sessions", len(sessions),
		"placeholder", len(materials) == 0,
	)
	s.publisher.Publish(ctx, course.UserID, models.WSTypePlanGenerated, models.PlanEvent{
		PlanID:        plan.ID,
		CourseID:      courseID,
		TotalSessions: len(sessions),
	})

	return &models.GeneratedPlan{
		Plan:     plan,
		Summary:  planSummary(data),
		Sessions: sessions,
	}, nil
}

// GetActivePlan returns the course's authoritative plan and its sessions.
func (s *PlanService) GetActivePlan(ctx context.Context, userID, courseID uuid.UUID) (*models.StudyPlan, []*models.StudySession, error) {
	if _, err := loadOwnedCourse(ctx, s.courses, userID, courseID); err != nil {
		return nil, nil, err
	}

	plan, err := s.plans.GetActiveByCourse(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, errNoStudyPlan()
		}
		return nil, nil, err
	}

	sessions, err := s.sessions.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, nil, err
	}
	return plan, sessions, nil
}
