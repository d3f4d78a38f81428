package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studybuddy-backend/internal/models"
)

type StudyPlanRepo struct {
	pool *pgxpool.Pool
}

func NewStudyPlanRepo(pool *pgxpool.Pool) *StudyPlanRepo {
	return &StudyPlanRepo{pool: pool}
}

const planColumns = `id, course_id, user_id, plan_data, status, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.StudyPlan, error) {
	p := &models.StudyPlan{}
	var data []byte
	if err := row.Scan(&p.ID, &p.CourseID, &p.UserID, &data, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &p.PlanData); err != nil {
		return nil, fmt.Errorf("decode plan data: %w", err)
	}
	return p, nil
}

// CreateWithSessions archives the course's current active plan and inserts
// the new plan with all of its sessions in one transaction. The stored
// session count is checked against the plan document before commit.
func (r *StudyPlanRepo) CreateWithSessions(ctx context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error {
	planData, err := json.Marshal(plan.PlanData)
	if err != nil {
		return fmt.Errorf("encode plan data: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE study_plans SET status = 'archived', updated_at = NOW()
		WHERE course_id = $1 AND status = 'active'
	`, plan.CourseID); err != nil {
		return fmt.Errorf("archive previous plan: %w", err)
	}

	plan.ID = uuid.New()
	plan.Status = models.PlanStatusActive
	err = tx.QueryRow(ctx, `
		INSERT INTO study_plans (id, course_id, user_id, plan_data, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, plan.ID, plan.CourseID, plan.UserID, planData, plan.Status).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	batch := &pgx.Batch{}
	for _, s := range sessions {
		s.ID = uuid.New()
		s.PlanID = plan.ID
		topics, reqs, guide, err := encodeSessionDocs(s)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO study_sessions (id, plan_id, course_id, user_id, session_number, title, topics,
				scheduled_date, scheduled_time, estimated_duration, content_requirements, study_guide, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at
		`, s.ID, s.PlanID, s.CourseID, s.UserID, s.SessionNumber, s.Title, topics,
			s.ScheduledDate.UTC(), s.ScheduledTime, s.EstimatedDuration, reqs, guide, s.Status, s.Notes)
	}

	br := tx.SendBatch(ctx, batch)
	for _, s := range sessions {
		if err := br.QueryRow().Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			br.Close()
			return fmt.Errorf("insert session %d: %w", s.SessionNumber, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	var stored int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM study_sessions WHERE plan_id = $1", plan.ID).Scan(&stored); err != nil {
		return err
	}
	if stored != plan.PlanData.PlanOverview.TotalSessions {
		return fmt.Errorf("plan %s stored %d sessions, expected %d", plan.ID, stored, plan.PlanData.PlanOverview.TotalSessions)
	}

	return tx.Commit(ctx)
}

func encodeSessionDocs(s *models.StudySession) (topics, reqs, guide []byte, err error) {
	if s.Topics == nil {
		s.Topics = []string{}
	}
	if s.ContentRequirements.RequiredMaterials == nil {
		s.ContentRequirements.RequiredMaterials = []uuid.UUID{}
	}
	if topics, err = json.Marshal(s.Topics); err != nil {
		return nil, nil, nil, fmt.Errorf("encode session topics: %w", err)
	}
	if reqs, err = json.Marshal(s.ContentRequirements); err != nil {
		return nil, nil, nil, fmt.Errorf("encode content requirements: %w", err)
	}
	if guide, err = json.Marshal(s.StudyGuide); err != nil {
		return nil, nil, nil, fmt.Errorf("encode study guide: %w", err)
	}
	return topics, reqs, guide, nil
}

func (r *StudyPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyPlan, error) {
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM study_plans WHERE id = $1`, id))
}

// GetActiveByCourse returns the most recent active plan for a course.
func (r *StudyPlanRepo) GetActiveByCourse(ctx context.Context, courseID uuid.UUID) (*models.StudyPlan, error) {
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM study_plans
		WHERE course_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`, courseID))
}

func (r *StudyPlanRepo) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM study_plans WHERE user_id = $1 AND status = 'active'", userID).Scan(&n)
	return n, err
}

// SaveContentArrival writes the updated plan document and the sessions whose
// content requirements changed in one transaction.
func (r *StudyPlanRepo) SaveContentArrival(ctx context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error {
	planData, err := json.Marshal(plan.PlanData)
	if err != nil {
		return fmt.Errorf("encode plan data: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"UPDATE study_plans SET plan_data = $1, updated_at = NOW() WHERE id = $2",
		planData, plan.ID); err != nil {
		return fmt.Errorf("update plan data: %w", err)
	}

	batch := &pgx.Batch{}
	for _, s := range sessions {
		_, reqs, _, err := encodeSessionDocs(s)
		if err != nil {
			return err
		}
		batch.Queue(`UPDATE study_sessions SET content_requirements = $1, status = $2, updated_at = NOW()
			WHERE id = $3`, reqs, s.Status, s.ID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update sessions: %w", err)
	}

	return tx.Commit(ctx)
}
