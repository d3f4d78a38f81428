package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

func completedAt(t time.Time) *time.Time { return &t }

func TestComputeUserProgress(t *testing.T) {
	now := testNow
	day := 24 * time.Hour

	sessions := []*models.StudySession{
		{Status: models.SessionStatusCompleted, EstimatedDuration: 90, CompletedAt: completedAt(now.Add(-1 * time.Hour)), ValidationScore: floatPtr(80)},
		{Status: models.SessionStatusCompleted, EstimatedDuration: 60, CompletedAt: completedAt(now.Add(-day)), ValidationScore: floatPtr(95)},
		{Status: models.SessionStatusCompleted, EstimatedDuration: 45, CompletedAt: completedAt(now.Add(-2 * day))},
		{Status: models.SessionStatusCompleted, EstimatedDuration: 90, CompletedAt: completedAt(now.Add(-10 * day))},
		{Status: models.SessionStatusScheduled, EstimatedDuration: 90},
		{Status: models.SessionStatusSkipped, EstimatedDuration: 90},
	}

	p := ComputeUserProgress(sessions, nil, 2, 1, now)

	if p.TotalCourses != 2 || p.ActivePlans != 1 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.CompletedSessions != 4 || p.TotalSessions != 6 {
		t.Fatalf("expected 4/6 sessions, got %d/%d", p.CompletedSessions, p.TotalSessions)
	}
	if p.OverallProgress != 66.7 {
		t.Fatalf("expected 66.7%%, got %v", p.OverallProgress)
	}
	if p.WeeklyProgress != 30 {
		t.Fatalf("expected weekly progress 30, got %d", p.WeeklyProgress)
	}
	if p.TotalStudyTime != 4.8 {
		t.Fatalf("expected 4.8 hours, got %v", p.TotalStudyTime)
	}
	if p.AverageScore != 87.5 {
		t.Fatalf("expected average 87.5, got %v", p.AverageScore)
	}
	if p.StudyStreak != 3 {
		t.Fatalf("expected 3 day streak, got %d", p.StudyStreak)
	}
}

func TestComputeUserProgress_Empty(t *testing.T) {
	p := ComputeUserProgress(nil, nil, 0, 0, testNow)
	if p.OverallProgress != 0 || p.AverageScore != 0 || p.StudyStreak != 0 {
		t.Fatalf("expected zeroed progress, got %+v", p)
	}
}

func TestComputeUserProgress_StudyLogs(t *testing.T) {
	now := testNow
	sessions := []*models.StudySession{
		{Status: models.SessionStatusCompleted, EstimatedDuration: 60, CompletedAt: completedAt(now.Add(-time.Hour)), ValidationScore: floatPtr(80)},
	}
	logs := []*models.StudyLog{
		{DurationMinutes: 30, Score: floatPtr(100), LoggedAt: now.AddDate(0, 0, -3)},
		{DurationMinutes: 90, LoggedAt: now.AddDate(0, 0, -10)},
	}

	p := ComputeUserProgress(sessions, logs, 1, 1, now)

	if p.TotalSessions != 1 || p.CompletedSessions != 1 || p.OverallProgress != 100 {
		t.Fatalf("logs must not count as sessions: %+v", p)
	}
	if p.TotalStudyTime != 3 {
		t.Fatalf("expected 3 hours, got %v", p.TotalStudyTime)
	}
	if p.AverageScore != 90 {
		t.Fatalf("expected average 90, got %v", p.AverageScore)
	}
	if p.WeeklyProgress != 20 {
		t.Fatalf("expected weekly progress 20, got %d", p.WeeklyProgress)
	}
	if p.StudyStreak != 1 {
		t.Fatalf("expected 1 day streak, got %d", p.StudyStreak)
	}
}

func TestStudyStreak(t *testing.T) {
	tests := []struct {
		name string
		days []int // days before now with a completion
		want int
	}{
		{"none", nil, 0},
		{"today only", []int{0}, 1},
		{"ends yesterday", []int{1, 2}, 2},
		{"gap breaks streak", []int{0, 1, 3}, 2},
		{"stale", []int{2, 3}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := make(map[string]bool)
			for _, d := range tc.days {
				set[testNow.AddDate(0, 0, -d).Format("2006-01-02")] = true
			}
			if got := studyStreak(set, testNow); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestComputeCourseProgress_NextSession(t *testing.T) {
	base := testNow
	plan := &models.StudyPlan{ID: uuid.New(), CourseID: uuid.New()}
	sessions := []*models.StudySession{
		{SessionNumber: 1, Status: models.SessionStatusCompleted, ScheduledDate: base},
		{SessionNumber: 2, Status: models.SessionStatusAwaitingContent, ScheduledDate: base.AddDate(0, 0, 1)},
		{SessionNumber: 4, Status: models.SessionStatusScheduled, ScheduledDate: base.AddDate(0, 0, 3)},
		{SessionNumber: 3, Status: models.SessionStatusScheduled, ScheduledDate: base.AddDate(0, 0, 3)},
		{SessionNumber: 5, Status: models.SessionStatusScheduled, ScheduledDate: base.AddDate(0, 0, 5)},
	}

	p := ComputeCourseProgress(plan, sessions)
	if p.NextSession == nil || p.NextSession.SessionNumber != 3 {
		t.Fatalf("expected session 3 next, got %+v", p.NextSession)
	}
	if p.ProgressPercentage != 20 {
		t.Fatalf("expected 20%%, got %v", p.ProgressPercentage)
	}
}

func TestGetCourseProgress_NoPlan(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	course := mustCreateCourse(t, env, userID, "Linear Algebra")

	_, err := env.progSvc.GetCourseProgress(context.Background(), userID, course.ID)
	if ErrorCode(err) != CodeNoStudyPlanFound {
		t.Fatalf("expected %s, got %v", CodeNoStudyPlanFound, err)
	}
}

func TestProgress_CompletionIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	course := mustCreateCourse(t, env, userID, "Calculus")
	mustAddMaterial(t, env, userID, course.ID, "Limits", intPtr(1))
	mustAddMaterial(t, env, userID, course.ID, "Derivatives", intPtr(1))

	gen, err := env.planSvc.GenerateStudyPlan(ctx, userID, course.ID, models.PlanPreferences{})
	if err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}
	first := gen.Sessions[0]

	for i := 0; i < 2; i++ {
		if _, err := env.sessionSvc.CompleteSession(ctx, userID, first.ID, models.CompleteSessionRequest{}); err != nil {
			t.Fatalf("CompleteSession #%d: %v", i+1, err)
		}
	}

	cp, err := env.progSvc.GetCourseProgress(ctx, userID, course.ID)
	if err != nil {
		t.Fatalf("GetCourseProgress: %v", err)
	}
	if cp.CompletedSessions != 1 || cp.TotalSessions != 2 || cp.ProgressPercentage != 50 {
		t.Fatalf("unexpected course progress: %+v", cp)
	}
	if cp.NextSession == nil || cp.NextSession.ID != gen.Sessions[1].ID {
		t.Fatalf("expected the second session next")
	}

	up, err := env.progSvc.GetUserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserProgress: %v", err)
	}
	if up.CompletedSessions != 1 || up.TotalSessions != 2 || up.TotalCourses != 1 || up.ActivePlans != 1 {
		t.Fatalf("unexpected user progress: %+v", up)
	}
	if up.StudyStreak != 1 || up.WeeklyProgress != 10 {
		t.Fatalf("unexpected streak or weekly progress: %+v", up)
	}
}

func TestGetUserProgress_KeepsHistoryAcrossRegeneration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	course := mustCreateCourse(t, env, userID, "Chemistry")
	mustAddMaterial(t, env, userID, course.ID, "Stoichiometry", intPtr(1))

	gen, err := env.planSvc.GenerateStudyPlan(ctx, userID, course.ID, models.PlanPreferences{})
	if err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}
	if _, err := env.sessionSvc.CompleteSession(ctx, userID, gen.Sessions[0].ID, models.CompleteSessionRequest{ValidationScore: floatPtr(80)}); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if _, err := env.planSvc.GenerateStudyPlan(ctx, userID, course.ID, models.PlanPreferences{}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}

	up, err := env.progSvc.GetUserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserProgress: %v", err)
	}
	if up.CompletedSessions != 1 || up.TotalStudyTime != 1.5 || up.AverageScore != 80 || up.WeeklyProgress != 10 {
		t.Fatalf("completed history lost after regeneration: %+v", up)
	}
	// One pending session in the new plan plus the completed archived one.
	if up.TotalSessions != 2 || up.ActivePlans != 1 || up.OverallProgress != 50 {
		t.Fatalf("unexpected totals: %+v", up)
	}
}

func TestGetUserProgress_DropsPendingArchivedSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	course := mustCreateCourse(t, env, userID, "Physics")

	if _, err := env.planSvc.GenerateStudyPlan(ctx, userID, course.ID, models.PlanPreferences{}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}
	if _, err := env.planSvc.GenerateStudyPlan(ctx, userID, course.ID, models.PlanPreferences{DurationWeeks: 2}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}

	up, err := env.progSvc.GetUserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserProgress: %v", err)
	}
	// Two weeks biweekly: only week 1 gets sessions.
	if up.TotalSessions != 3 {
		t.Fatalf("expected 3 sessions from the active plan, got %d", up.TotalSessions)
	}
}

func TestRecordStudyLog(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	course := mustCreateCourse(t, env, userID, "Biology")
	other := mustCreateCourse(t, env, uuid.New(), "Someone else's")

	tests := []struct {
		name string
		req  models.RecordStudyLogRequest
		code string
	}{
		{"missing duration", models.RecordStudyLogRequest{}, CodeMalformedInput},
		{"score out of range", models.RecordStudyLogRequest{DurationMinutes: 30, Score: floatPtr(120)}, CodeMalformedInput},
		{"blank topic", models.RecordStudyLogRequest{DurationMinutes: 30, Topics: []string{""}}, CodeMalformedInput},
		{"unknown course", models.RecordStudyLogRequest{DurationMinutes: 30, CourseID: &[]uuid.UUID{uuid.New()}[0]}, CodeCourseNotFound},
		{"foreign course", models.RecordStudyLogRequest{DurationMinutes: 30, CourseID: &other.ID}, CodeForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.progSvc.RecordStudyLog(ctx, userID, tc.req); ErrorCode(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	l, err := env.progSvc.RecordStudyLog(ctx, userID, models.RecordStudyLogRequest{
		DurationMinutes: 45,
		Topics:          []string{"mitosis"},
		CourseID:        &course.ID,
		Score:           floatPtr(70),
	})
	if err != nil {
		t.Fatalf("RecordStudyLog: %v", err)
	}
	if l.ID == uuid.Nil || !l.LoggedAt.Equal(testNow) {
		t.Fatalf("unexpected log: %+v", l)
	}

	up, err := env.progSvc.GetUserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserProgress: %v", err)
	}
	if up.TotalSessions != 0 || up.TotalStudyTime != 0.8 || up.AverageScore != 70 || up.WeeklyProgress != 10 || up.StudyStreak != 1 {
		t.Fatalf("logged study time missing from progress: %+v", up)
	}
}
