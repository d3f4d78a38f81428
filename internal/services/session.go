package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

type SessionService struct {
	plans     PlanStore
	sessions  SessionStore
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewSessionService(plans PlanStore, sessions SessionStore, publisher Publisher, log *logger.Logger) *SessionService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &SessionService{
		plans:     plans,
		sessions:  sessions,
		publisher: publisher,
		log:       log.With("component", "sessions"),
		now:       time.Now,
	}
}

func (s *SessionService) loadOwned(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, errSessionNotFound()
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this session"}
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	return s.loadOwned(ctx, userID, sessionID)
}

// ListSessions returns a plan's sessions ordered by session number.
func (s *SessionService) ListSessions(ctx context.Context, userID, planID uuid.UUID) ([]*models.StudySession, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if isNoRows(err) {
			return nil, errNoStudyPlan()
		}
		return nil, err
	}
	if plan.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this study plan"}
	}
	return s.sessions.ListByPlan(ctx, planID)
}

func (s *SessionService) GetSessionGuide(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudyGuide, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &session.StudyGuide, nil
}

func (s *SessionService) StartSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	return s.transition(ctx, userID, sessionID,
		[]string{models.SessionStatusScheduled}, models.SessionStatusInProgress)
}

func (s *SessionService) SkipSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	return s.transition(ctx, userID, sessionID,
		[]string{models.SessionStatusScheduled, models.SessionStatusAwaitingContent, models.SessionStatusInProgress},
		models.SessionStatusSkipped)
}

func (s *SessionService) transition(ctx context.Context, userID, sessionID uuid.UUID, from []string, to string) (*models.StudySession, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == to {
		return session, nil
	}

	ok, err := s.sessions.Transition(ctx, sessionID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConflictError{
			Code:    CodeConflict,
			Message: fmt.Sprintf("Session cannot move from %s to %s", session.Status, to),
		}
	}
	session.Status = to
	return session, nil
}

// CompleteSession marks the session completed. Completing it again keeps it
// completed, refreshes completed_at and overwrites any score or notes given.
func (s *SessionService) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, req models.CompleteSessionRequest) (*models.StudySession, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.loadOwned(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	ok, err := s.sessions.Complete(ctx, sessionID, s.now().UTC(), req.ValidationScore, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !ok {
		return nil, errSessionNotFound()
	}

	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	s.log.Info("session completed", "session_id", sessionID, "user_id", userID)
	s.publisher.Publish(ctx, userID, models.WSTypeSessionCompleted, models.SessionEvent{
		SessionID:     session.ID,
		CourseID:      session.CourseID,
		Title:         session.Title,
		ScheduledDate: session.ScheduledDate,
	})
	return session, nil
}
