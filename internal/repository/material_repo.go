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

type MaterialRepo struct {
	pool *pgxpool.Pool
}

func NewMaterialRepo(pool *pgxpool.Pool) *MaterialRepo {
	return &MaterialRepo{pool: pool}
}

const materialColumns = `id, course_id, user_id, title, content_type, content_text, file_path,
	week_number, topics, uploaded_at, metadata_json`

func scanMaterial(row pgx.Row) (*models.Material, error) {
	m := &models.Material{}
	var topics []byte
	err := row.Scan(&m.ID, &m.CourseID, &m.UserID, &m.Title, &m.ContentType, &m.ContentText,
		&m.FilePath, &m.WeekNumber, &topics, &m.UploadedAt, &m.MetadataJSON)
	if err != nil {
		return nil, err
	}
	m.Topics = []string{}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &m.Topics); err != nil {
			return nil, fmt.Errorf("decode material topics: %w", err)
		}
	}
	return m, nil
}

func (r *MaterialRepo) Create(ctx context.Context, m *models.Material) error {
	m.ID = uuid.New()
	if m.Topics == nil {
		m.Topics = []string{}
	}
	topics, err := json.Marshal(m.Topics)
	if err != nil {
		return fmt.Errorf("encode material topics: %w", err)
	}
	meta := []byte(m.MetadataJSON)
	if len(meta) == 0 {
		meta = []byte("{}")
	}

	query := `INSERT INTO course_materials
		(id, course_id, user_id, title, content_type, content_text, file_path, week_number, topics, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING uploaded_at`

	return r.pool.QueryRow(ctx, query,
		m.ID, m.CourseID, m.UserID, m.Title, m.ContentType, m.ContentText, m.FilePath,
		m.WeekNumber, topics, meta,
	).Scan(&m.UploadedAt)
}

func (r *MaterialRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	return scanMaterial(r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM course_materials WHERE id = $1`, id))
}

// ListByCourse orders by week (untagged materials last), then upload time.
func (r *MaterialRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM course_materials
		WHERE course_id = $1
		ORDER BY week_number ASC NULLS LAST, uploaded_at ASC, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]*models.Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
