package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render"
)

func TestScene_DetachIsCountedOnce(t *testing.T) {
	s := New()
	m, err := s.NewMarker(entity.LatLng{Lat: 1, Lng: 2}, render.Glyph{Shape: "circle"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Live())

	require.NoError(t, m.Detach())
	require.NoError(t, m.Detach())

	created, disposed := s.Stats()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, disposed)
	assert.Equal(t, 0, s.Live())
	assert.False(t, m.Attached())

	_, err = m.Position()
	assert.ErrorIs(t, err, render.ErrDisposed)
	assert.ErrorIs(t, m.SetGlyph(render.Glyph{}), render.ErrDisposed)
}

func TestScene_SetPathRequiresEditable(t *testing.T) {
	s := New()
	line, err := s.NewPolyline([]entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, render.Style{})
	require.NoError(t, err)

	fired := 0
	cancel := line.OnPathChanged(func() { fired++ })

	newPath := []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 2, Lng: 2}}
	assert.ErrorIs(t, s.SetPath(line.ID(), newPath), ErrNotEditable)

	require.NoError(t, line.SetEditable(true))
	require.NoError(t, s.SetPath(line.ID(), newPath))
	assert.Equal(t, 1, fired)

	got, err := line.Path()
	require.NoError(t, err)
	assert.Equal(t, newPath, got)

	cancel()
	require.NoError(t, s.SetPath(line.ID(), newPath))
	assert.Equal(t, 1, fired)

	assert.ErrorIs(t, s.SetPath("missing", newPath), ErrUnknownObject)
}

func TestScene_SnapshotKeepsCreationOrder(t *testing.T) {
	s := New()
	_, _ = s.NewPolygon([]entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}, render.Style{FillColor: "#00FF00"})
	m, _ := s.NewMarker(entity.LatLng{Lat: 5, Lng: 5}, render.Glyph{Text: "P"})
	require.NoError(t, m.SetDraggable(true))

	views := s.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, KindPolygon, views[0].Kind)
	assert.Equal(t, "#00FF00", views[0].Style.FillColor)
	assert.Equal(t, KindMarker, views[1].Kind)
	assert.True(t, views[1].Draggable)
	assert.Equal(t, 1, s.Count(KindMarker))
}
