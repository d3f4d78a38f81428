package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

const reminderPollInterval = 1 * time.Hour

// ReminderMailer sends session reminder emails.
type ReminderMailer interface {
	SendSessionReminderEmail(to, username, courseTitle, sessionTitle string, at time.Time, timeOfDay string) error
}

// ReminderScheduler emails owners of sessions scheduled within the lead
// window. Each session is reminded at most once.
type ReminderScheduler struct {
	sessions  SessionStore
	users     UserStore
	courses   CourseStore
	mailer    ReminderMailer
	publisher Publisher
	lead      time.Duration
	log       *logger.Logger
	stopChan  chan struct{}
}

func NewReminderScheduler(
	sessions SessionStore,
	users UserStore,
	courses CourseStore,
	mailer ReminderMailer,
	publisher Publisher,
	lead time.Duration,
	log *logger.Logger,
) *ReminderScheduler {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ReminderScheduler{
		sessions:  sessions,
		users:     users,
		courses:   courses,
		mailer:    mailer,
		publisher: publisher,
		lead:      lead,
		log:       log.With("component", "reminders"),
		stopChan:  make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	if s.sessions == nil || s.mailer == nil || s.lead <= 0 {
		return
	}
	go s.loop()
	s.log.Info("reminder scheduler started", "lead", s.lead.String())
}

func (s *ReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReminderScheduler) loop() {
	// Run on startup as well as by interval.
	s.RunOnce(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background(), time.Now().UTC())
		}
	}
}

// RunOnce sends reminders for sessions due in [now, now+lead) and returns how
// many were sent.
func (s *ReminderScheduler) RunOnce(ctx context.Context, now time.Time) int {
	due, err := s.sessions.ListDueForReminder(ctx, now, now.Add(s.lead))
	if err != nil {
		s.log.Error("list due sessions", "error", err)
		return 0
	}

	users := make(map[uuid.UUID]*models.User)
	courseTitles := make(map[uuid.UUID]string)
	sent := 0

	for _, session := range due {
		user, ok := users[session.UserID]
		if !ok {
			user, err = s.users.GetByID(ctx, session.UserID)
			if err != nil {
				s.log.Warn("load reminder recipient", "user_id", session.UserID, "error", err)
				continue
			}
			users[session.UserID] = user
		}

		title, ok := courseTitles[session.CourseID]
		if !ok {
			if course, err := s.courses.GetByID(ctx, session.CourseID); err == nil {
				title = course.Title
			}
			courseTitles[session.CourseID] = title
		}

		if err := s.mailer.SendSessionReminderEmail(user.Email, user.Username, title, session.Title, session.ScheduledDate, session.ScheduledTime); err != nil {
			s.log.Warn("send session reminder", "session_id", session.ID, "error", err)
			continue
		}
		if err := s.sessions.MarkReminded(ctx, session.ID, now); err != nil {
			s.log.Warn("persist reminder timestamp", "session_id", session.ID, "error", err)
		}

		s.publisher.Publish(ctx, session.UserID, models.WSTypeSessionReminder, models.SessionEvent{
			SessionID:     session.ID,
			CourseID:      session.CourseID,
			Title:         session.Title,
			ScheduledDate: session.ScheduledDate,
			ScheduledTime: session.ScheduledTime,
		})
		sent++
	}

	if sent > 0 {
		s.log.Info("session reminders sent", "count", sent)
	}
	return sent
}
