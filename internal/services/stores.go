package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

// The store interfaces are satisfied by the pgx repositories in
// internal/repository and by in-memory fakes in tests.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, profile json.RawMessage) error
}

type CourseStore interface {
	Create(ctx context.Context, c *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Course, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateOutline(ctx context.Context, id uuid.UUID, outline models.CourseOutline) error
}

type MaterialStore interface {
	Create(ctx context.Context, m *models.Material) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.Material, error)
}

type PlanStore interface {
	CreateWithSessions(ctx context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudyPlan, error)
	GetActiveByCourse(ctx context.Context, courseID uuid.UUID) (*models.StudyPlan, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
	SaveContentArrival(ctx context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error
}

type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*models.StudySession, error)
	ListForProgress(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time, score *float64, notes *string) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]*models.StudySession, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}

type StudyLogStore interface {
	Create(ctx context.Context, l *models.StudyLog) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.StudyLog, error)
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetMaterial(ctx context.Context, id, materialID uuid.UUID) error
}

// Publisher pushes an event to a user's realtime channel.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msgType string, payload interface{})
}

// Locker serializes work on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
