package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/overlay"
	"job-annotation-service/internal/render/scene"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   atomic.Int32
	byJob   map[int64][]entity.Annotation
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchAnnotations(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]entity.Annotation(nil), f.byJob[jobID]...), nil
}

func ll(lat, lng float64) entity.LatLng { return entity.LatLng{Lat: lat, Lng: lng} }

func sampleAnnotations(jobID int64) []entity.Annotation {
	return []entity.Annotation{
		{ID: 1, JobID: jobID, Kind: entity.KindPin, Name: "valve", Geometry: []entity.LatLng{ll(1, 2)}},
		{ID: 2, JobID: jobID, Kind: entity.KindLine, Name: "trench", Geometry: []entity.LatLng{ll(0, 0), ll(1, 1)}},
		{ID: 3, JobID: jobID, Kind: entity.KindPolygon, Name: "yard", Geometry: []entity.LatLng{ll(0, 0), ll(0, 1), ll(1, 1)}},
	}
}

func TestStore_LoadTwiceLeavesOneOverlayPerAnnotation(t *testing.T) {
	sc := scene.New()
	f := &fakeFetcher{byJob: map[int64][]entity.Annotation{10: sampleAnnotations(10)}}
	s := New(f, sc)

	list, err := s.Load(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 3, sc.Live())

	list, err = s.Load(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	created, disposed := sc.Stats()
	assert.Equal(t, 6, created)
	assert.Equal(t, 3, disposed)
	assert.Equal(t, 3, sc.Live())
	assert.Equal(t, created-disposed, len(s.Entries(10)))
}

func TestStore_ConcurrentLoadsShareOneFetch(t *testing.T) {
	sc := scene.New()
	f := &fakeFetcher{
		byJob:   map[int64][]entity.Annotation{10: sampleAnnotations(10)},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(f, sc)

	var wg sync.WaitGroup
	lists := make([][]entity.Annotation, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lists[0], errs[0] = s.Load(context.Background(), 10)
	}()
	<-f.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		lists[1], errs[1] = s.Load(context.Background(), 10)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for s.guard.Waiters(10) < 1 {
		require.True(t, time.Now().Before(deadline), "second load never joined")
		time.Sleep(time.Millisecond)
	}

	close(f.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, lists[0], lists[1])
	assert.Equal(t, 3, sc.Live())
}

func TestStore_LoadFailureKeepsEntries(t *testing.T) {
	sc := scene.New()
	f := &fakeFetcher{byJob: map[int64][]entity.Annotation{10: sampleAnnotations(10)}}
	s := New(f, sc)
	_, err := s.Load(context.Background(), 10)
	require.NoError(t, err)

	f.err = errors.New("down")
	_, err = s.Load(context.Background(), 10)
	require.Error(t, err)
	assert.Len(t, s.Entries(10), 3)
	assert.Equal(t, 3, sc.Live())
}

func TestStore_LoadSkipsUnbuildableAnnotations(t *testing.T) {
	sc := scene.New()
	bad := entity.Annotation{ID: 9, Kind: entity.KindLine, Geometry: []entity.LatLng{ll(0, 0)}}
	f := &fakeFetcher{byJob: map[int64][]entity.Annotation{10: append(sampleAnnotations(10), bad)}}
	s := New(f, sc)

	list, err := s.Load(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	_, ok := s.FindByID(9)
	assert.False(t, ok)
}

func TestStore_AddRemoveFind(t *testing.T) {
	sc := scene.New()
	s := New(&fakeFetcher{}, sc)

	a := entity.Annotation{ID: 42, Kind: entity.KindPin, Name: "meter", Geometry: []entity.LatLng{ll(1, 2)}}
	ov, err := overlay.Build(sc, a)
	require.NoError(t, err)

	require.Error(t, s.Add(5, entity.Annotation{Kind: entity.KindPin}, ov), "drafts cannot be added")
	require.NoError(t, s.Add(5, a, ov))

	e, ok := s.FindByID(42)
	require.True(t, ok)
	assert.Equal(t, int64(5), e.Annotation.JobID)
	jobID, ok := s.JobOf(42)
	assert.True(t, ok)
	assert.Equal(t, int64(5), jobID)

	replacement, err := overlay.Build(sc, a)
	require.NoError(t, err)
	require.NoError(t, s.Add(5, a, replacement))
	assert.Equal(t, 1, sc.Live(), "old overlay disposed on replace")

	assert.True(t, s.Remove(5, 42))
	assert.False(t, s.Remove(5, 42))
	assert.Equal(t, 0, sc.Live())
	_, ok = s.FindByID(42)
	assert.False(t, ok)
}

func TestStore_SnapshotReadsLiveGeometry(t *testing.T) {
	sc := scene.New()
	f := &fakeFetcher{byJob: map[int64][]entity.Annotation{10: sampleAnnotations(10)}}
	s := New(f, sc)
	_, err := s.Load(context.Background(), 10)
	require.NoError(t, err)

	e, _ := s.FindByID(2)
	shape := e.Overlay.(overlay.Editable).Shape()
	require.NoError(t, shape.SetEditable(true))
	moved := []entity.LatLng{ll(0, 0), ll(5, 5)}
	require.NoError(t, sc.SetPath(shape.ID(), moved))

	snap, err := s.Snapshot(2)
	require.NoError(t, err)
	assert.Equal(t, moved, snap.Geometry)
	assert.Equal(t, "trench", snap.Name)

	_, err = s.Snapshot(99)
	assert.Error(t, err)
}

func TestStore_ClearAndReconcile(t *testing.T) {
	sc := scene.New()
	f := &fakeFetcher{byJob: map[int64][]entity.Annotation{10: sampleAnnotations(10)}}
	s := New(f, sc)
	_, err := s.Load(context.Background(), 10)
	require.NoError(t, err)

	e, ok := s.Reconcile(1, entity.Annotation{Kind: entity.KindPin, Name: "renamed", Geometry: []entity.LatLng{ll(1, 2)}})
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Annotation.ID)
	assert.Equal(t, int64(10), e.Annotation.JobID)
	assert.Equal(t, "renamed", e.Annotation.Name)

	assert.Equal(t, 3, s.Clear(10))
	assert.Equal(t, 0, sc.Live())
	assert.Empty(t, s.IDs(10))
}
