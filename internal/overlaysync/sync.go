// Package overlaysync keeps overlays in step with the edit state: colors,
// editability, and the connection lines between a job marker and its
// annotations. Overlay failures are logged here and never returned; a stale
// handle only costs a cosmetic refresh.
package overlaysync

import (
	"log/slog"
	"sync"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/overlay"
	"job-annotation-service/internal/render"
	"job-annotation-service/internal/store"
)

type Entries interface {
	Entries(jobID int64) []store.Entry
}

type Markers interface {
	MarkerPosition(jobID int64) (entity.LatLng, bool)
}

type Tracker interface {
	BeginEdit(id int64)
	MarkDirty(id int64) bool
}

// ColorOverrides replaces colors of the stored style; empty fields keep the stored value.
type ColorOverrides struct {
	FillColor   string
	StrokeColor string
}

var connectionStyle = render.Style{
	StrokeColor:   "#333333",
	StrokeOpacity: 0.7,
	StrokeWeight:  2,
	Dashed:        true,
	Geodesic:      true,
	ZIndex:        1,
}

// session is one editable period of an annotation. A path-changed callback
// carrying an older generation is ignored.
type session struct {
	gen    uint64
	cancel func()
}

type Sync struct {
	provider render.Provider
	entries  Entries
	markers  Markers
	tracker  Tracker
	log      *slog.Logger

	mu       sync.Mutex
	lines    map[int64][]render.Shape
	sessions map[int64]*session
	gen      uint64
}

func New(provider render.Provider, entries Entries, markers Markers, tracker Tracker) *Sync {
	return &Sync{
		provider: provider,
		entries:  entries,
		markers:  markers,
		tracker:  tracker,
		log:      slog.Default().With("component", "overlaysync"),
		lines:    make(map[int64][]render.Shape),
		sessions: make(map[int64]*session),
	}
}

// ApplyStyle pushes colors onto the live overlay, leaving geometry alone.
// Polygons take fill and stroke, lines stroke only, pins get a new glyph.
func (s *Sync) ApplyStyle(e store.Entry, o ColorOverrides) {
	style := e.Annotation.Style
	if o.FillColor != "" {
		style.FillColor = o.FillColor
	}
	if o.StrokeColor != "" {
		style.StrokeColor = o.StrokeColor
	}

	var err error
	switch ov := e.Overlay.(type) {
	case *overlay.Polygon:
		err = ov.Ring.SetStyle(overlay.ShapeStyle(entity.KindPolygon, style))
	case *overlay.Line:
		err = ov.Path.SetStyle(overlay.ShapeStyle(entity.KindLine, style))
	case *overlay.Pin:
		err = ov.Marker.SetGlyph(overlay.PinGlyph(style, e.Annotation.Name))
	default:
		s.log.Warn("apply style: unknown overlay", "annotation_id", e.Annotation.ID)
		return
	}
	if err != nil {
		s.log.Warn("apply style", "annotation_id", e.Annotation.ID, "error", err)
	}
}

// SetEditable toggles the geometry handles of a line or polygon; pins are
// ignored. Turning it on starts a geometry-edit session whose path-changed
// listener moves the annotation through editing to dirty and redraws the
// job's connection lines. Turning it off ends the session.
func (s *Sync) SetEditable(e store.Entry, editable bool) {
	ed, ok := e.Overlay.(overlay.Editable)
	if !ok {
		return
	}
	id, jobID := e.Annotation.ID, e.Annotation.JobID
	shape := ed.Shape()

	if !editable {
		s.Release(id)
		if err := shape.SetEditable(false); err != nil {
			s.log.Debug("set editable=false", "annotation_id", id, "error", err)
		}
		return
	}

	s.mu.Lock()
	s.releaseLocked(id)
	s.gen++
	sess := &session{gen: s.gen}
	s.sessions[id] = sess
	s.mu.Unlock()

	if err := shape.SetEditable(true); err != nil {
		s.log.Warn("set editable=true", "annotation_id", id, "error", err)
		s.Release(id)
		return
	}

	gen := sess.gen
	cancel := shape.OnPathChanged(func() { s.pathChanged(jobID, id, gen) })

	s.mu.Lock()
	if s.sessions[id] == sess {
		sess.cancel = cancel
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cancel()
}

func (s *Sync) pathChanged(jobID, id int64, gen uint64) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || sess.gen != gen {
		s.log.Debug("ignore path change from ended session", "annotation_id", id)
		return
	}
	s.tracker.BeginEdit(id)
	s.tracker.MarkDirty(id)
	s.RebuildConnectionLines(jobID)
}

// Editable reports whether the annotation is in a geometry-edit session.
func (s *Sync) Editable(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Release ends geometry-edit sessions without touching the overlays, for
// overlays that are about to be (or already were) disposed.
func (s *Sync) Release(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.releaseLocked(id)
	}
}

func (s *Sync) releaseLocked(id int64) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	if sess.cancel != nil {
		sess.cancel()
	}
}

// RebuildConnectionLines replaces the job's connection lines: all old lines
// are removed, then one dashed line is drawn from the marker to each
// annotation with a representative position. It returns the number drawn.
func (s *Sync) RebuildConnectionLines(jobID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLinesLocked(jobID)

	from, ok := s.markers.MarkerPosition(jobID)
	if !ok {
		return 0
	}

	var lines []render.Shape
	for _, e := range s.entries.Entries(jobID) {
		to, ok := overlay.RepresentativePosition(e.Overlay)
		if !ok {
			s.log.Debug("no representative position, skipping", "job_id", jobID, "annotation_id", e.Annotation.ID)
			continue
		}
		line, err := s.provider.NewPolyline([]entity.LatLng{from, to}, connectionStyle)
		if err != nil {
			s.log.Warn("draw connection line", "job_id", jobID, "annotation_id", e.Annotation.ID, "error", err)
			continue
		}
		lines = append(lines, line)
	}
	s.lines[jobID] = lines
	return len(lines)
}

func (s *Sync) HideConnectionLines(jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLinesLocked(jobID)
}

func (s *Sync) ConnectionLines(jobID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines[jobID])
}

func (s *Sync) clearLinesLocked(jobID int64) {
	for _, l := range s.lines[jobID] {
		if err := l.Detach(); err != nil {
			s.log.Debug("detach connection line", "job_id", jobID, "error", err)
		}
	}
	delete(s.lines, jobID)
}
