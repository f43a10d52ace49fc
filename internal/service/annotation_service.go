package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/repository/postgresql"
)

// Repository port (implementation: postgresql.AnnotationRepository)
type AnnotationRepository interface {
	ListByJob(ctx context.Context, jobID int64) ([]entity.Annotation, error)
	Create(ctx context.Context, a entity.Annotation) (entity.Annotation, error)
	Update(ctx context.Context, a entity.Annotation) (entity.Annotation, error)
	Delete(ctx context.Context, id int64) error
}

// AnnotationService backs the reference annotations API the map client talks to.
type AnnotationService struct {
	repo AnnotationRepository
}

func NewAnnotationService(repo AnnotationRepository) *AnnotationService {
	return &AnnotationService{repo: repo}
}

type SaveAnnotationRequest struct {
	Kind        string
	Name        string
	Description string
	Coordinates []entity.LatLng
	Style       entity.StyleOptions
}

func (r SaveAnnotationRequest) annotation(op string) (entity.Annotation, error) {
	kind, err := entity.ParseKind(r.Kind)
	if err != nil {
		return entity.Annotation{}, apperr.Validation(op, err.Error())
	}
	if err := entity.ValidateGeometry(kind, r.Coordinates); err != nil {
		return entity.Annotation{}, apperr.Validation(op, err.Error())
	}
	return entity.Annotation{
		Kind:        kind,
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Geometry:    r.Coordinates,
		Style:       r.Style,
	}, nil
}

func (s *AnnotationService) List(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	if jobID <= 0 {
		return nil, apperr.Validation("list annotations", "invalid job id")
	}
	return s.repo.ListByJob(ctx, jobID)
}

func (s *AnnotationService) Create(ctx context.Context, jobID int64, req SaveAnnotationRequest) (entity.Annotation, error) {
	if jobID <= 0 {
		return entity.Annotation{}, apperr.Validation("create annotation", "invalid job id")
	}
	a, err := req.annotation("create annotation")
	if err != nil {
		return entity.Annotation{}, err
	}
	a.JobID = jobID
	return s.repo.Create(ctx, a)
}

// Update replaces every editable field; the kind of an annotation never changes.
// The kind may be omitted, in which case the geometry is only checked for being non-empty.
func (s *AnnotationService) Update(ctx context.Context, id int64, req SaveAnnotationRequest) (entity.Annotation, error) {
	const op = "update annotation"
	if id <= 0 {
		return entity.Annotation{}, apperr.Validation(op, "invalid id")
	}

	var a entity.Annotation
	if strings.TrimSpace(req.Kind) == "" {
		if len(req.Coordinates) == 0 {
			return entity.Annotation{}, apperr.Validation(op, "coordinates are required")
		}
		a = entity.Annotation{
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Geometry:    req.Coordinates,
			Style:       req.Style,
		}
	} else {
		var err error
		if a, err = req.annotation(op); err != nil {
			return entity.Annotation{}, err
		}
	}
	a.ID = id

	out, err := s.repo.Update(ctx, a)
	if errors.Is(err, postgresql.ErrNotFound) {
		return entity.Annotation{}, apperr.NotFound(op, "Annotation not found")
	}
	return out, err
}

func (s *AnnotationService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("delete annotation", "invalid id")
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, postgresql.ErrNotFound) {
		return apperr.NotFound("delete annotation", "Annotation not found")
	}
	if err != nil {
		return fmt.Errorf("delete annotation %d: %w", id, err)
	}
	return nil
}
