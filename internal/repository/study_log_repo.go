package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studybuddy-backend/internal/models"
)

type StudyLogRepo struct {
	pool *pgxpool.Pool
}

func NewStudyLogRepo(pool *pgxpool.Pool) *StudyLogRepo {
	return &StudyLogRepo{pool: pool}
}

func (r *StudyLogRepo) Create(ctx context.Context, l *models.StudyLog) error {
	l.ID = uuid.New()
	if l.Topics == nil {
		l.Topics = []string{}
	}
	topics, err := json.Marshal(l.Topics)
	if err != nil {
		return fmt.Errorf("encode log topics: %w", err)
	}

	query := `INSERT INTO study_logs (id, user_id, course_id, duration_minutes, topics, score, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.pool.Exec(ctx, query, l.ID, l.UserID, l.CourseID, l.DurationMinutes, topics, l.Score, l.LoggedAt)
	return err
}

func (r *StudyLogRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.StudyLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, course_id, duration_minutes, topics, score, logged_at
		FROM study_logs WHERE user_id = $1 ORDER BY logged_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*models.StudyLog, 0)
	for rows.Next() {
		l := &models.StudyLog{}
		var topics []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.CourseID, &l.DurationMinutes, &topics, &l.Score, &l.LoggedAt); err != nil {
			return nil, err
		}
		l.Topics = []string{}
		if len(topics) > 0 {
			if err := json.Unmarshal(topics, &l.Topics); err != nil {
				return nil, fmt.Errorf("decode log topics: %w", err)
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
