// Package jobmarker keeps the map marker of every registered job, along with
// the position each job had when its marker was first created.
package jobmarker

import (
	"errors"
	"log/slog"
	"sync"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render"
)

var (
	ErrUnknownJob   = errors.New("jobmarker: unknown job")
	ErrNotDraggable = errors.New("jobmarker: marker is not draggable")
	ErrNoOrigin     = errors.New("jobmarker: no original position recorded")
)

var typeColors = map[string]string{
	"CleanUps":    "#007bff",
	"Crew Work":   "#dc3545",
	"General":     "#ffc107",
	"Plumbing":    "#dc3545",
	"Electrical":  "#fd7e14",
	"HVAC":        "#6f42c1",
	"Landscaping": "#20c997",
	"Roofing":     "#6c757d",
	"Painting":    "#e83e8c",
	"Flooring":    "#795548",
}

var typeGlyphs = map[string]string{
	"CleanUps":    "C",
	"Crew Work":   "W",
	"General":     "G",
	"Plumbing":    "P",
	"Electrical":  "E",
	"HVAC":        "H",
	"Landscaping": "L",
	"Roofing":     "R",
	"Painting":    "T",
	"Flooring":    "F",
}

// Glyph is the marker content for a job type. Unknown types get a gray "J".
func Glyph(job entity.Job) render.Glyph {
	color, ok := typeColors[job.Type]
	if !ok {
		color = "#6c757d"
	}
	text, ok := typeGlyphs[job.Type]
	if !ok {
		text = "J"
	}
	return render.Glyph{
		Shape:        "pin",
		Text:         text,
		FillColor:    color,
		StrokeColor:  "#FFFFFF",
		StrokeWeight: 1,
		Scale:        1.2,
		Title:        job.Title,
	}
}

type entry struct {
	job       entity.Job
	marker    render.Marker
	draggable bool
}

type Registry struct {
	mu       sync.RWMutex
	provider render.Provider
	jobs     map[int64]*entry
	origins  map[int64]entity.LatLng
	log      *slog.Logger
}

func NewRegistry(provider render.Provider) *Registry {
	return &Registry{
		provider: provider,
		jobs:     make(map[int64]*entry),
		origins:  make(map[int64]entity.LatLng),
		log:      slog.Default().With("component", "jobmarker"),
	}
}

// Register draws the job's marker, replacing (and detaching) an existing one.
// The original position is recorded only the first time a job is seen.
func (r *Registry) Register(job entity.Job) error {
	m, err := r.provider.NewMarker(job.Location, Glyph(job))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.jobs[job.ID]; ok {
		if err := old.marker.Detach(); err != nil {
			r.log.Warn("detach job marker", "job_id", job.ID, "error", err)
		}
	}
	r.jobs[job.ID] = &entry{job: job, marker: m}
	if _, ok := r.origins[job.ID]; !ok {
		r.origins[job.ID] = job.Location
	}
	return nil
}

// Remove detaches the marker and forgets the job, including its original position.
func (r *Registry) Remove(jobID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	if err := e.marker.Detach(); err != nil {
		r.log.Warn("detach job marker", "job_id", jobID, "error", err)
	}
	delete(r.jobs, jobID)
	delete(r.origins, jobID)
	return true
}

func (r *Registry) Job(jobID int64) (entity.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return entity.Job{}, false
	}
	return e.job, true
}

func (r *Registry) Jobs() []entity.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.job)
	}
	return out
}

// MarkerPosition is where the marker currently sits, which during a drag may
// differ from the job's committed location.
func (r *Registry) MarkerPosition(jobID int64) (entity.LatLng, bool) {
	r.mu.RLock()
	e, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return entity.LatLng{}, false
	}
	p, err := e.marker.Position()
	if err != nil {
		return entity.LatLng{}, false
	}
	return p, true
}

func (r *Registry) SetDraggable(jobID int64, v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return ErrUnknownJob
	}
	if err := e.marker.SetDraggable(v); err != nil {
		return err
	}
	e.draggable = v
	return nil
}

func (r *Registry) Draggable(jobID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	return ok && e.draggable
}

// MoveMarker follows the cursor during a drag; the job location is unchanged.
func (r *Registry) MoveMarker(jobID int64, pos entity.LatLng) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return ErrUnknownJob
	}
	if !e.draggable {
		return ErrNotDraggable
	}
	return e.marker.SetPosition(pos)
}

// CommitPosition sets both the marker and the job location.
func (r *Registry) CommitPosition(jobID int64, pos entity.LatLng) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return ErrUnknownJob
	}
	if err := e.marker.SetPosition(pos); err != nil {
		return err
	}
	e.job.Location = pos
	return nil
}

func (r *Registry) Origin(jobID int64) (entity.LatLng, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.origins[jobID]
	return p, ok
}

// ResetPosition moves the job back to the position recorded at first registration.
func (r *Registry) ResetPosition(jobID int64) (entity.LatLng, error) {
	r.mu.RLock()
	origin, ok := r.origins[jobID]
	r.mu.RUnlock()
	if !ok {
		return entity.LatLng{}, ErrNoOrigin
	}
	if err := r.CommitPosition(jobID, origin); err != nil {
		return entity.LatLng{}, err
	}
	return origin, nil
}
