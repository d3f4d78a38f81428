package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type sentReminder struct {
	to, course, session string
}

type fakeMailer struct {
	sent []sentReminder
	fail bool
}

func (m *fakeMailer) SendSessionReminderEmail(to, _, courseTitle, sessionTitle string, _ time.Time, _ string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentReminder{to: to, course: courseTitle, session: sessionTitle})
	return nil
}

func TestReminderScheduler_RunOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user := &models.User{Email: "rem@example.com", Username: "rem"}
	if err := env.Users.Create(ctx, user); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	course := mustCreateCourse(t, env, user.ID, "Music Theory")
	mustAddMaterial(t, env, user.ID, course.ID, "Scales", intPtr(1))
	mustAddMaterial(t, env, user.ID, course.ID, "Chords", intPtr(1))
	if _, err := env.planSvc.GenerateStudyPlan(ctx, user.ID, course.ID, models.PlanPreferences{}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}

	mailer := &fakeMailer{}
	sched := NewReminderScheduler(env.Sessions, env.Users, env.Courses, mailer, env.Publisher, 24*time.Hour, testLogger())

	// Sessions fall on day 0 and day 2 after the start date.
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if n := sched.RunOnce(ctx, start); n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "rem@example.com" || mailer.sent[0].course != "Music Theory" {
		t.Fatalf("unexpected mail: %+v", mailer.sent)
	}

	// Already reminded sessions are not sent again.
	if n := sched.RunOnce(ctx, start); n != 0 {
		t.Fatalf("expected no repeat reminders, got %d", n)
	}

	if n := sched.RunOnce(ctx, start.AddDate(0, 0, 2)); n != 1 {
		t.Fatalf("expected the second session reminder, got %d", n)
	}

	types := env.Publisher.Types()
	if types[len(types)-1] != models.WSTypeSessionReminder {
		t.Fatalf("expected session_reminder event, got %v", types)
	}
}

func TestReminderScheduler_MailFailureRetriesLater(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user := &models.User{Email: "retry@example.com", Username: "retry"}
	if err := env.Users.Create(ctx, user); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	course := mustCreateCourse(t, env, user.ID, "Poetry")
	mustAddMaterial(t, env, user.ID, course.ID, "Sonnets", intPtr(1))
	if _, err := env.planSvc.GenerateStudyPlan(ctx, user.ID, course.ID, models.PlanPreferences{}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}

	mailer := &fakeMailer{fail: true}
	sched := NewReminderScheduler(env.Sessions, env.Users, env.Courses, mailer, nil, 24*time.Hour, testLogger())
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	if n := sched.RunOnce(ctx, start); n != 0 {
		t.Fatalf("expected no reminders while mail fails, got %d", n)
	}
	mailer.fail = false
	if n := sched.RunOnce(ctx, start); n != 1 {
		t.Fatalf("expected reminder once mail recovers, got %d", n)
	}
}

func TestReminderScheduler_SkipsMissingUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ghost := uuid.New()
	course := mustCreateCourse(t, env, ghost, "Ghost Course")
	mustAddMaterial(t, env, ghost, course.ID, "Nothing", intPtr(1))
	if _, err := env.planSvc.GenerateStudyPlan(ctx, ghost, course.ID, models.PlanPreferences{}); err != nil {
		t.Fatalf("GenerateStudyPlan: %v", err)
	}

	mailer := &fakeMailer{}
	sched := NewReminderScheduler(env.Sessions, env.Users, env.Courses, mailer, nil, 24*time.Hour, testLogger())
	if n := sched.RunOnce(ctx, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("expected no reminders, got %d", n)
	}
}
