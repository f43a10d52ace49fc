package service_test

import (
	"context"
	"errors"
	"testing"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/repository/postgresql"
	"job-annotation-service/internal/service"
)

type fakeRepo struct {
	createCalled int
	updateCalled int
	lastCreated  entity.Annotation
	lastUpdated  entity.Annotation

	updateErr error
	deleteErr error
}

func (r *fakeRepo) ListByJob(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	return []entity.Annotation{{ID: 1, JobID: jobID, Kind: entity.KindPin}}, nil
}

func (r *fakeRepo) Create(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	r.createCalled++
	r.lastCreated = a
	a.ID = 7
	return a, nil
}

func (r *fakeRepo) Update(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	r.updateCalled++
	r.lastUpdated = a
	if r.updateErr != nil {
		return entity.Annotation{}, r.updateErr
	}
	return a, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	return r.deleteErr
}

func TestAnnotationService_Create_NormalizesKindAndName(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewAnnotationService(repo)

	got, err := svc.Create(context.Background(), 3, service.SaveAnnotationRequest{
		Kind:        " Polygon ",
		Name:        "  Back yard ",
		Coordinates: []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 0}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ID != 7 || got.JobID != 3 {
		t.Fatalf("expected id=7 job=3, got id=%d job=%d", got.ID, got.JobID)
	}
	if repo.lastCreated.Kind != entity.KindPolygon {
		t.Fatalf("expected kind polygon, got %q", repo.lastCreated.Kind)
	}
	if repo.lastCreated.Name != "Back yard" {
		t.Fatalf("expected trimmed name, got %q", repo.lastCreated.Name)
	}
}

func TestAnnotationService_Create_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		job  int64
		req  service.SaveAnnotationRequest
	}{
		{"unknown kind", 1, service.SaveAnnotationRequest{Kind: "circle", Coordinates: []entity.LatLng{{}}}},
		{"pin without point", 1, service.SaveAnnotationRequest{Kind: "pin"}},
		{"line with one point", 1, service.SaveAnnotationRequest{Kind: "line", Coordinates: []entity.LatLng{{}}}},
		{"missing job", 0, service.SaveAnnotationRequest{Kind: "pin", Coordinates: []entity.LatLng{{}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := service.NewAnnotationService(repo)

			_, err := svc.Create(context.Background(), tc.job, tc.req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if repo.createCalled != 0 {
				t.Fatalf("repository must not be called, got %d calls", repo.createCalled)
			}
		})
	}
}

func TestAnnotationService_Update_NotFound(t *testing.T) {
	repo := &fakeRepo{updateErr: postgresql.ErrNotFound}
	svc := service.NewAnnotationService(repo)

	_, err := svc.Update(context.Background(), 9, service.SaveAnnotationRequest{
		Kind:        "pin",
		Coordinates: []entity.LatLng{{Lat: 1, Lng: 1}},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if repo.lastUpdated.ID != 9 {
		t.Fatalf("expected update of id 9, got %d", repo.lastUpdated.ID)
	}
}

func TestAnnotationService_Delete_MapsNotFound(t *testing.T) {
	svc := service.NewAnnotationService(&fakeRepo{deleteErr: postgresql.ErrNotFound})
	if err := svc.Delete(context.Background(), 4); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	boom := errors.New("connection reset")
	svc = service.NewAnnotationService(&fakeRepo{deleteErr: boom})
	if err := svc.Delete(context.Background(), 4); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}

func TestAnnotationService_Update_KindOptional(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewAnnotationService(repo)

	_, err := svc.Update(context.Background(), 5, service.SaveAnnotationRequest{
		Name:        "fence",
		Coordinates: []entity.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.updateCalled != 1 || len(repo.lastUpdated.Geometry) != 2 {
		t.Fatalf("expected one full update, got calls=%d geometry=%v", repo.updateCalled, repo.lastUpdated.Geometry)
	}

	_, err = svc.Update(context.Background(), 5, service.SaveAnnotationRequest{Name: "fence"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error without coordinates, got %v", err)
	}
}
