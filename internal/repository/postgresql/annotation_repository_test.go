package postgresql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-annotation-service/internal/entity"
)

// Runs against a scratch database: POSTGRES_TEST_DSN=postgres://... go test ./internal/repository/postgresql
func testRepo(t *testing.T) *AnnotationRepository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewAnnotationRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestAnnotationRepository_RoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	jobID := time.Now().UnixNano() % 1_000_000_000

	pin, err := repo.Create(ctx, entity.Annotation{
		JobID:    jobID,
		Kind:     entity.KindPin,
		Name:     "Valve",
		Geometry: []entity.LatLng{{Lat: 52.1, Lng: 4.3}},
		Style:    entity.StyleOptions{FillColor: "#00FF00"},
	})
	require.NoError(t, err)
	assert.NotZero(t, pin.ID)
	t.Cleanup(func() { _ = repo.Delete(context.Background(), pin.ID) })

	list, err := repo.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.KindPin, list[0].Kind)
	assert.Equal(t, "Valve", list[0].Name)
	assert.Equal(t, []entity.LatLng{{Lat: 52.1, Lng: 4.3}}, list[0].Geometry)
	assert.Equal(t, "#00FF00", list[0].Style.FillColor)

	pin.Name = "Main valve"
	pin.Geometry = []entity.LatLng{{Lat: 52.2, Lng: 4.4}}
	updated, err := repo.Update(ctx, pin)
	require.NoError(t, err)
	assert.Equal(t, "Main valve", updated.Name)
	assert.Equal(t, pin.Geometry, updated.Geometry)

	require.NoError(t, repo.Delete(ctx, pin.ID))
	assert.True(t, errors.Is(repo.Delete(ctx, pin.ID), ErrNotFound))

	_, err = repo.Update(ctx, pin)
	assert.True(t, errors.Is(err, ErrNotFound))
}
