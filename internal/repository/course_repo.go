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

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

const courseColumns = `id, user_id, title, description, course_outline, metadata_json, created_at`

func scanCourse(row pgx.Row) (*models.Course, error) {
	c := &models.Course{}
	var outline []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &outline, &c.MetadataJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(outline) > 0 {
		if err := json.Unmarshal(outline, &c.Outline); err != nil {
			return nil, fmt.Errorf("decode course outline: %w", err)
		}
	}
	return c, nil
}

func (r *CourseRepo) Create(ctx context.Context, c *models.Course) error {
	c.ID = uuid.New()

	outline, err := json.Marshal(c.Outline)
	if err != nil {
		return fmt.Errorf("encode course outline: %w", err)
	}
	meta := []byte(c.MetadataJSON)
	if len(meta) == 0 {
		meta = []byte("{}")
	}

	query := `INSERT INTO courses (id, user_id, title, description, course_outline, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.UserID, c.Title, c.Description, outline, meta,
	).Scan(&c.CreatedAt)
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

// ListByUser returns the user's courses, newest first.
func (r *CourseRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := make([]*models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM courses WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

func (r *CourseRepo) UpdateOutline(ctx context.Context, id uuid.UUID, outline models.CourseOutline) error {
	data, err := json.Marshal(outline)
	if err != nil {
		return fmt.Errorf("encode course outline: %w", err)
	}
	tag, err := r.pool.Exec(ctx, "UPDATE courses SET course_outline = $1 WHERE id = $2", data, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
