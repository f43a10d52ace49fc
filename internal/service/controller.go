package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/editstate"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/jobmarker"
	"job-annotation-service/internal/overlaysync"
	"job-annotation-service/internal/prompt"
	"job-annotation-service/internal/render"
	"job-annotation-service/internal/store"
)

// ErrCancelled is returned when the user backs out of a dialog. Nothing is notified.
var ErrCancelled = errors.New("cancelled by user")

// AnnotationAPI is the persistence bridge (implementation: annotationapi.Client).
type AnnotationAPI interface {
	FetchAnnotations(ctx context.Context, jobID int64) ([]entity.Annotation, error)
	CreateAnnotation(ctx context.Context, jobID int64, d entity.Draft) (entity.Annotation, error)
	UpdateAnnotation(ctx context.Context, a entity.Annotation) (entity.Annotation, error)
	DeleteAnnotation(ctx context.Context, id int64) error
	SetToken(token string)
}

type Notifier interface {
	Notify(message string, kind entity.NotificationKind)
}

// Metrics is optional.
type Metrics interface {
	SetDirty(n int)
	RecordBatchSave(ok bool)
}

type Deps struct {
	API      AnnotationAPI
	Provider render.Provider
	Notifier Notifier
	Prompter prompt.Prompter
	Metrics  Metrics
}

// Controller drives the edit session of a map: which job is in edit mode,
// the annotation flows, marker dragging. Every user-initiated mutation ends
// in exactly one notification, except when the user cancels or the request
// is aborted.
type Controller struct {
	api      AnnotationAPI
	provider render.Provider
	notifier Notifier
	prompter prompt.Prompter
	metrics  Metrics

	store   *store.Store
	tracker *editstate.Tracker
	markers *jobmarker.Registry
	sync    *overlaysync.Sync
	log     *slog.Logger

	mu         sync.Mutex
	editingJob int64
	readOnly   bool
}

func NewController(d Deps) *Controller {
	c := &Controller{
		api:      d.API,
		provider: d.Provider,
		notifier: d.Notifier,
		prompter: d.Prompter,
		metrics:  d.Metrics,
		store:    store.New(d.API, d.Provider),
		tracker:  editstate.NewTracker(),
		markers:  jobmarker.NewRegistry(d.Provider),
		log:      slog.Default().With("component", "controller"),
	}
	if c.prompter == nil {
		c.prompter = prompt.ContextPrompter{}
	}
	if d.Metrics != nil {
		c.tracker.OnChange = d.Metrics.SetDirty
	}
	c.sync = overlaysync.New(d.Provider, c.store, c.markers, c.tracker)
	return c
}

// RegisterJob draws (or redraws) the job's marker.
func (c *Controller) RegisterJob(job entity.Job) error {
	if job.ID == 0 {
		return apperr.Validation("register job", "job id is required")
	}
	if err := c.markers.Register(job); err != nil {
		return fmt.Errorf("draw marker of job %d: %w", job.ID, err)
	}
	c.sync.RebuildConnectionLines(job.ID)
	return nil
}

// RemoveJob clears the job from the map: lines, annotations, marker and its
// cached original position. Unsaved changes are dropped.
func (c *Controller) RemoveJob(jobID int64) bool {
	ids := c.store.IDs(jobID)
	c.sync.HideConnectionLines(jobID)
	c.sync.Release(ids...)
	c.tracker.ResolveMany(ids...)
	c.store.Clear(jobID)

	c.mu.Lock()
	if c.editingJob == jobID {
		c.editingJob = 0
	}
	c.mu.Unlock()

	return c.markers.Remove(jobID)
}

// LoadAnnotations (re)loads the job's annotations from the server and redraws
// them. A job in edit mode gets its lines and polygons editable again.
//
// A reload would drop unsaved changes, so when the job has any the prompter
// decides first: save them, then reload, or revert them by reloading.
func (c *Controller) LoadAnnotations(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	if _, ok := c.markers.Job(jobID); !ok {
		return nil, apperr.NotFound("load annotations", fmt.Sprintf("job %d is not on the map", jobID))
	}
	before := c.store.IDs(jobID)

	dirty := c.tracker.DirtyAmong(before)
	save := false
	if len(dirty) > 0 {
		var err error
		save, err = c.prompter.Confirm(ctx, fmt.Sprintf(
			"You have %d unsaved annotation changes for this job. Do you want to save them before reloading?", len(dirty)))
		if err != nil {
			return nil, err
		}
	}
	if save {
		res, err := c.saveAll(ctx, dirty)
		if err != nil {
			if !apperr.IsAborted(err) {
				c.notifier.Notify(fmt.Sprintf("Saved %d of %d annotation changes. Error saving the rest. Please try again.",
					len(res.Saved), len(dirty)), entity.NotifyError)
			}
			return nil, err
		}
	}

	list, err := c.store.Load(ctx, jobID)
	if err != nil {
		if len(dirty) > 0 {
			action := "reverting changes"
			if save {
				action = "loading annotations"
			}
			return nil, c.fail(ctx, action, err)
		}
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			c.enterReadOnly()
		}
		if !apperr.IsAborted(err) {
			c.log.WarnContext(ctx, "load annotations", "job_id", jobID, "error", err)
		}
		return nil, err
	}

	c.afterReload(jobID, before)
	switch {
	case save:
		c.notifier.Notify(fmt.Sprintf("Saved %d annotation changes and reloaded the job", len(dirty)), entity.NotifySuccess)
	case len(dirty) > 0:
		c.notifier.Notify(fmt.Sprintf("Reverted %d annotation changes", len(dirty)), entity.NotifyInfo)
	}
	return list, nil
}

// afterReload runs once the store holds fresh overlays for the job: sessions
// bound to the disposed overlays end, local state of the job is dropped.
func (c *Controller) afterReload(jobID int64, before []int64) {
	c.sync.Release(before...)
	c.tracker.ResolveMany(before...)
	c.tracker.ResolveMany(c.store.IDs(jobID)...)
	if c.isEditing(jobID) {
		for _, e := range c.store.Entries(jobID) {
			c.sync.SetEditable(e, true)
		}
	}
	c.sync.RebuildConnectionLines(jobID)
}

// ResumeSession installs a fresh token and leaves read-only mode.
func (c *Controller) ResumeSession(token string) {
	c.api.SetToken(token)
	c.mu.Lock()
	was := c.readOnly
	c.readOnly = false
	c.mu.Unlock()
	if was {
		c.log.Info("session resumed, leaving read-only mode")
	}
}

func (c *Controller) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly
}

func (c *Controller) enterReadOnly() {
	c.mu.Lock()
	was := c.readOnly
	c.readOnly = true
	c.mu.Unlock()
	if !was {
		c.log.Warn("session expired, switching to read-only mode")
	}
}

func (c *Controller) writable(op string) error {
	if c.ReadOnly() {
		return &apperr.Error{Kind: apperr.KindUnauthorized, Op: op, Msg: "login required"}
	}
	return nil
}

func (c *Controller) isEditing(jobID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingJob != 0 && c.editingJob == jobID
}

// EditingJob is the job currently in edit mode, if any.
func (c *Controller) EditingJob() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingJob, c.editingJob != 0
}

// fail routes a failed mutation to the sink and returns err unchanged.
// Aborts stay silent; an expired session switches to read-only.
func (c *Controller) fail(ctx context.Context, action string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindAborted:
		c.log.DebugContext(ctx, action+" aborted", "error", err)
		return err
	case apperr.KindUnauthorized:
		c.enterReadOnly()
	}
	c.log.WarnContext(ctx, action+" failed", "error", err)
	c.notifier.Notify(apperr.UserMessage(action, err), entity.NotifyError)
	return err
}

func (c *Controller) notFound(ctx context.Context, id int64) error {
	return c.fail(ctx, "finding annotation", apperr.NotFound("annotation", fmt.Sprintf("annotation %d not found", id)))
}

// JobView is the read model of a job on the map.
type JobView struct {
	Job             entity.Job     `json:"job"`
	Mode            entity.JobMode `json:"mode"`
	MarkerPosition  entity.LatLng  `json:"marker_position"`
	Origin          *entity.LatLng `json:"origin,omitempty"`
	Draggable       bool           `json:"draggable"`
	Annotations     int            `json:"annotations"`
	Dirty           []int64        `json:"dirty"`
	ConnectionLines int            `json:"connection_lines"`
}

// AnnotationView is an annotation with its local edit state.
type AnnotationView struct {
	entity.Annotation
	State     string `json:"state"`
	Editable  bool   `json:"editable"`
	OverlayID string `json:"overlay_id"`
}

func (c *Controller) Job(jobID int64) (JobView, bool) {
	job, ok := c.markers.Job(jobID)
	if !ok {
		return JobView{}, false
	}
	v := JobView{
		Job:             job,
		Mode:            entity.ModeViewing,
		Draggable:       c.markers.Draggable(jobID),
		ConnectionLines: c.sync.ConnectionLines(jobID),
	}
	if c.isEditing(jobID) {
		v.Mode = entity.ModeEditing
	}
	if p, ok := c.markers.MarkerPosition(jobID); ok {
		v.MarkerPosition = p
	}
	if o, ok := c.markers.Origin(jobID); ok {
		v.Origin = &o
	}
	ids := c.store.IDs(jobID)
	v.Annotations = len(ids)
	v.Dirty = c.tracker.DirtyAmong(ids)
	return v, true
}

func (c *Controller) Jobs() []JobView {
	jobs := c.markers.Jobs()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		if v, ok := c.Job(j.ID); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Controller) Annotations(jobID int64) []AnnotationView {
	entries := c.store.Entries(jobID)
	out := make([]AnnotationView, 0, len(entries))
	for _, e := range entries {
		out = append(out, c.view(e))
	}
	return out
}

// Annotation returns the annotation with its live geometry.
func (c *Controller) Annotation(id int64) (AnnotationView, bool) {
	e, ok := c.store.FindByID(id)
	if !ok {
		return AnnotationView{}, false
	}
	if snap, err := c.store.Snapshot(id); err == nil {
		e.Annotation = snap
	}
	return c.view(e), true
}

func (c *Controller) view(e store.Entry) AnnotationView {
	v := AnnotationView{
		Annotation: e.Annotation,
		State:      c.tracker.State(e.Annotation.ID).String(),
		Editable:   c.sync.Editable(e.Annotation.ID),
	}
	if e.Overlay != nil {
		if h := e.Overlay.Handle(); h != nil {
			v.OverlayID = h.ID()
		}
	}
	return v
}
