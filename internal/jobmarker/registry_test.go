package jobmarker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render/scene"
)

func TestRegistry_OriginRecordedOnce(t *testing.T) {
	sc := scene.New()
	r := NewRegistry(sc)

	job := entity.Job{ID: 1, Type: "Plumbing", Location: entity.LatLng{Lat: 10, Lng: 20}}
	require.NoError(t, r.Register(job))

	job.Location = entity.LatLng{Lat: 11, Lng: 21}
	require.NoError(t, r.Register(job))
	assert.Equal(t, 1, sc.Live(), "re-registering replaces the marker")

	origin, ok := r.Origin(1)
	require.True(t, ok)
	assert.Equal(t, entity.LatLng{Lat: 10, Lng: 20}, origin)

	pos, err := r.ResetPosition(1)
	require.NoError(t, err)
	assert.Equal(t, origin, pos)
	got, _ := r.Job(1)
	assert.Equal(t, origin, got.Location)
}

func TestRegistry_MoveRequiresDraggable(t *testing.T) {
	sc := scene.New()
	r := NewRegistry(sc)
	require.NoError(t, r.Register(entity.Job{ID: 1, Location: entity.LatLng{Lat: 1, Lng: 1}}))

	assert.ErrorIs(t, r.MoveMarker(1, entity.LatLng{Lat: 2, Lng: 2}), ErrNotDraggable)
	require.NoError(t, r.SetDraggable(1, true))
	require.NoError(t, r.MoveMarker(1, entity.LatLng{Lat: 2, Lng: 2}))

	p, ok := r.MarkerPosition(1)
	require.True(t, ok)
	assert.Equal(t, entity.LatLng{Lat: 2, Lng: 2}, p)
	job, _ := r.Job(1)
	assert.Equal(t, entity.LatLng{Lat: 1, Lng: 1}, job.Location, "drag does not commit")

	assert.ErrorIs(t, r.MoveMarker(9, entity.LatLng{}), ErrUnknownJob)
}

func TestRegistry_RemoveForgetsOrigin(t *testing.T) {
	sc := scene.New()
	r := NewRegistry(sc)
	require.NoError(t, r.Register(entity.Job{ID: 1}))

	assert.True(t, r.Remove(1))
	assert.Equal(t, 0, sc.Live())
	_, ok := r.Origin(1)
	assert.False(t, ok)
	_, err := r.ResetPosition(1)
	assert.ErrorIs(t, err, ErrNoOrigin)
}

func TestGlyph_ByJobType(t *testing.T) {
	g := Glyph(entity.Job{Type: "HVAC", Title: "Boiler"})
	assert.Equal(t, "#6f42c1", g.FillColor)
	assert.Equal(t, "H", g.Text)

	g = Glyph(entity.Job{Type: "Unknown"})
	assert.Equal(t, "#6c757d", g.FillColor)
}
