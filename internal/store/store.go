// Package store holds the annotations of every loaded job together with the
// overlay that draws each of them. An entry owns its overlay: replacing or
// removing the entry disposes it.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/fetchguard"
	"job-annotation-service/internal/overlay"
	"job-annotation-service/internal/render"
)

// Fetcher is the read side of the persistence bridge.
type Fetcher interface {
	FetchAnnotations(ctx context.Context, jobID int64) ([]entity.Annotation, error)
}

type Entry struct {
	Annotation entity.Annotation
	Overlay    overlay.Overlay
}

type Store struct {
	mu       sync.RWMutex
	byJob    map[int64][]*Entry
	fetcher  Fetcher
	provider render.Provider
	guard    *fetchguard.Guard[int64, []entity.Annotation]
	log      *slog.Logger
}

func New(fetcher Fetcher, provider render.Provider) *Store {
	return &Store{
		byJob:    make(map[int64][]*Entry),
		fetcher:  fetcher,
		provider: provider,
		guard:    fetchguard.New[int64, []entity.Annotation](),
		log:      slog.Default().With("component", "store"),
	}
}

// Load replaces the job's entries with fresh ones from the server. Concurrent
// loads of the same job share one fetch and one hydration and get the same list.
// On failure the current entries are kept.
func (s *Store) Load(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	list, shared, err := s.guard.Do(ctx, jobID, func(ctx context.Context) ([]entity.Annotation, error) {
		return s.load(ctx, jobID)
	})
	if shared {
		s.log.Debug("load joined in-flight call", "job_id", jobID)
	}
	return list, err
}

func (s *Store) load(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	start := time.Now()

	fetched, err := s.fetcher.FetchAnnotations(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	disposed := s.clearLocked(jobID)

	entries := make([]*Entry, 0, len(fetched))
	out := make([]entity.Annotation, 0, len(fetched))
	for _, a := range fetched {
		if a.JobID == 0 {
			a.JobID = jobID
		}
		ov, err := overlay.Build(s.provider, a)
		if err != nil {
			s.log.Warn("skip annotation", "job_id", jobID, "annotation_id", a.ID, "error", err)
			continue
		}
		entries = append(entries, &Entry{Annotation: a, Overlay: ov})
		out = append(out, a)
	}
	s.byJob[jobID] = entries

	s.log.Info("annotations loaded",
		"job_id", jobID, "count", len(entries), "disposed", disposed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Add registers a persisted annotation with the overlay already drawn for it.
func (s *Store) Add(jobID int64, a entity.Annotation, ov overlay.Overlay) error {
	if !a.Persisted() {
		return errors.New("store: annotation has no server id")
	}
	if ov == nil {
		return errors.New("store: nil overlay")
	}
	a.JobID = jobID

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, e, ok := s.findLocked(a.ID); ok {
		if e.Overlay != ov {
			s.dispose(e)
		}
		e.Annotation = a
		e.Overlay = ov
		return nil
	}
	s.byJob[jobID] = append(s.byJob[jobID], &Entry{Annotation: a, Overlay: ov})
	return nil
}

// Remove disposes the annotation's overlay and forgets it.
func (s *Store) Remove(jobID, annotationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byJob[jobID]
	for i, e := range list {
		if e.Annotation.ID != annotationID {
			continue
		}
		s.dispose(e)
		s.byJob[jobID] = append(list[:i:i], list[i+1:]...)
		return true
	}
	return false
}

// Clear disposes every overlay of the job without contacting the server.
func (s *Store) Clear(jobID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.clearLocked(jobID)
	delete(s.byJob, jobID)
	return n
}

func (s *Store) clearLocked(jobID int64) int {
	list := s.byJob[jobID]
	for _, e := range list {
		s.dispose(e)
	}
	s.byJob[jobID] = nil
	return len(list)
}

func (s *Store) dispose(e *Entry) {
	if e.Overlay == nil {
		return
	}
	if err := e.Overlay.Dispose(); err != nil {
		s.log.Warn("dispose overlay", "annotation_id", e.Annotation.ID, "error", err)
	}
}

// FindByID scans every job; the store holds tens of annotations, not millions.
func (s *Store) FindByID(id int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, e, ok := s.findLocked(id)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) JobOf(id int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, _, ok := s.findLocked(id)
	return jobID, ok
}

func (s *Store) findLocked(id int64) (int64, *Entry, bool) {
	for jobID, list := range s.byJob {
		for _, e := range list {
			if e.Annotation.ID == id {
				return jobID, e, true
			}
		}
	}
	return 0, nil, false
}

func (s *Store) Entries(jobID int64) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byJob[jobID]
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		out = append(out, *e)
	}
	return out
}

func (s *Store) IDs(jobID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byJob[jobID]
	ids := make([]int64, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.Annotation.ID)
	}
	return ids
}

// Update applies fn to the stored annotation. The overlay is not touched.
func (s *Store) Update(id int64, fn func(*entity.Annotation)) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, e, ok := s.findLocked(id)
	if !ok {
		return Entry{}, false
	}
	fn(&e.Annotation)
	return *e, true
}

// Snapshot is the full current local state of an annotation, geometry read
// from the live overlay.
func (s *Store) Snapshot(id int64) (entity.Annotation, error) {
	e, ok := s.FindByID(id)
	if !ok {
		return entity.Annotation{}, apperr.NotFound("snapshot", fmt.Sprintf("annotation %d not found", id))
	}
	geom, err := overlay.Geometry(e.Overlay)
	if err != nil {
		return entity.Annotation{}, fmt.Errorf("read geometry of annotation %d: %w", id, err)
	}
	a := e.Annotation
	a.Geometry = geom
	return a, nil
}

// Reconcile stores the server's copy of an annotation, keeping its overlay.
func (s *Store) Reconcile(id int64, server entity.Annotation) (Entry, bool) {
	return s.Update(id, func(a *entity.Annotation) {
		jobID := a.JobID
		*a = server
		a.ID = id
		if a.JobID == 0 {
			a.JobID = jobID
		}
	})
}
