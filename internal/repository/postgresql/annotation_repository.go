package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"job-annotation-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS job_annotations (
    id SERIAL PRIMARY KEY,
    job_id BIGINT NOT NULL,
    annotation_type VARCHAR(20) NOT NULL CHECK (annotation_type IN ('polygon', 'pin', 'line')),
    name VARCHAR(255),
    description TEXT,
    coordinates JSONB NOT NULL,
    style_options JSONB DEFAULT '{}',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS job_annotations_job_id_idx ON job_annotations (job_id);
`

const columns = `id, job_id, annotation_type, name, description, coordinates, style_options, created_at, updated_at`

type AnnotationRepository struct {
	pool *pgxpool.Pool
}

func NewAnnotationRepository(pool *pgxpool.Pool) *AnnotationRepository {
	return &AnnotationRepository{pool: pool}
}

func (r *AnnotationRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create job_annotations: %w", err)
	}
	return nil
}

func (r *AnnotationRepository) ListByJob(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	q := `SELECT ` + columns + ` FROM job_annotations WHERE job_id = $1 ORDER BY created_at ASC, id ASC;`

	rows, err := r.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnnotationRepository) Create(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	coords, style, err := encodeJSON(a)
	if err != nil {
		return entity.Annotation{}, err
	}

	q := `
INSERT INTO job_annotations (job_id, annotation_type, name, description, coordinates, style_options)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + columns + `;`

	return scanAnnotation(r.pool.QueryRow(ctx, q, a.JobID, string(a.Kind), a.Name, a.Description, coords, style))
}

// Update replaces name, description, coordinates and style. The kind and job never change.
func (r *AnnotationRepository) Update(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	coords, style, err := encodeJSON(a)
	if err != nil {
		return entity.Annotation{}, err
	}

	q := `
UPDATE job_annotations
SET name = $1, description = $2, coordinates = $3, style_options = $4, updated_at = CURRENT_TIMESTAMP
WHERE id = $5
RETURNING ` + columns + `;`

	out, err := scanAnnotation(r.pool.QueryRow(ctx, q, a.Name, a.Description, coords, style, a.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Annotation{}, ErrNotFound
	}
	return out, err
}

func (r *AnnotationRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM job_annotations WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeJSON(a entity.Annotation) (coords, style []byte, err error) {
	if coords, err = json.Marshal(a.Geometry); err != nil {
		return nil, nil, fmt.Errorf("encode coordinates: %w", err)
	}
	if style, err = json.Marshal(a.Style); err != nil {
		return nil, nil, fmt.Errorf("encode style: %w", err)
	}
	return coords, style, nil
}

func scanAnnotation(row pgx.Row) (entity.Annotation, error) {
	var (
		a          entity.Annotation
		kindText   string
		name, desc *string
		coords     []byte
		style      []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.JobID,
		&kindText,
		&name, // NULL => nil
		&desc,
		&coords,
		&style,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return entity.Annotation{}, err
	}

	a.Kind = entity.Kind(kindText)
	if name != nil {
		a.Name = *name
	}
	if desc != nil {
		a.Description = *desc
	}
	if err := json.Unmarshal(coords, &a.Geometry); err != nil {
		return entity.Annotation{}, fmt.Errorf("decode coordinates of %d: %w", a.ID, err)
	}
	if len(style) > 0 {
		if err := json.Unmarshal(style, &a.Style); err != nil {
			return entity.Annotation{}, fmt.Errorf("decode style of %d: %w", a.ID, err)
		}
	}
	return a, nil
}
