package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studybuddy-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

const sessionColumns = `s.id, s.plan_id, s.course_id, s.user_id, s.session_number, s.title, s.topics,
	s.scheduled_date, s.scheduled_time, s.estimated_duration, s.content_requirements, s.study_guide,
	s.status, s.completed_at, s.validation_score, s.notes, s.reminder_sent_at, s.created_at, s.updated_at`

func scanSession(row pgx.Row) (*models.StudySession, error) {
	s := &models.StudySession{}
	var topics, reqs, guide []byte
	err := row.Scan(&s.ID, &s.PlanID, &s.CourseID, &s.UserID, &s.SessionNumber, &s.Title, &topics,
		&s.ScheduledDate, &s.ScheduledTime, &s.EstimatedDuration, &reqs, &guide,
		&s.Status, &s.CompletedAt, &s.ValidationScore, &s.Notes, &s.ReminderSentAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeSessionDocs(s, topics, reqs, guide); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeSessionDocs(s *models.StudySession, topics, reqs, guide []byte) error {
	s.Topics = []string{}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &s.Topics); err != nil {
			return fmt.Errorf("decode session topics: %w", err)
		}
	}
	if len(reqs) > 0 {
		if err := json.Unmarshal(reqs, &s.ContentRequirements); err != nil {
			return fmt.Errorf("decode content requirements: %w", err)
		}
	}
	if s.ContentRequirements.RequiredMaterials == nil {
		s.ContentRequirements.RequiredMaterials = []uuid.UUID{}
	}
	if len(guide) > 0 {
		if err := json.Unmarshal(guide, &s.StudyGuide); err != nil {
			return fmt.Errorf("decode study guide: %w", err)
		}
	}
	return nil
}

func collectSessions(rows pgx.Rows) ([]*models.StudySession, error) {
	defer rows.Close()
	sessions := make([]*models.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM study_sessions s WHERE s.id = $1`, id))
}

func (r *StudySessionRepo) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM study_sessions s
		WHERE s.plan_id = $1 ORDER BY s.session_number ASC`, planID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListForProgress returns the sessions of the user's active plans plus every
// completed session the user has, archived plans included.
func (r *StudySessionRepo) ListForProgress(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM study_sessions s
		JOIN study_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND (p.status = 'active' OR s.status = 'completed')
		ORDER BY s.scheduled_date ASC, s.session_number ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// Complete marks a session completed. Nil score or notes keep the stored
// values. Returns false when no session has the given id.
func (r *StudySessionRepo) Complete(ctx context.Context, id uuid.UUID, at time.Time, score *float64, notes *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET status = 'completed',
			completed_at = $2,
			validation_score = COALESCE($3, validation_score),
			notes = COALESCE($4, notes),
			updated_at = NOW()
		WHERE id = $1
	`, id, at.UTC(), score, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Transition moves a session to status `to` only when its current status is
// one of `from`. Returns false when the row did not match.
func (r *StudySessionRepo) Transition(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *StudySessionRepo) ListDueForReminder(ctx context.Context, from, to time.Time) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM study_sessions s
		JOIN study_plans p ON p.id = s.plan_id
		WHERE s.status = 'scheduled'
		  AND s.reminder_sent_at IS NULL
		  AND p.status = 'active'
		  AND s.scheduled_date >= $1 AND s.scheduled_date < $2
		ORDER BY s.scheduled_date ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *StudySessionRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, "UPDATE study_sessions SET reminder_sent_at = $1 WHERE id = $2", at.UTC(), id)
	return err
}
