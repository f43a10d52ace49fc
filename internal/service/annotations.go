package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/overlay"
	"job-annotation-service/internal/overlaysync"
	"job-annotation-service/internal/prompt"
	"job-annotation-service/internal/store"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// NewAnnotation is a shape just drawn on the map.
type NewAnnotation struct {
	Kind     entity.Kind
	Geometry []entity.LatLng
	Style    entity.StyleOptions
}

// AnnotationEdit is what the edit dialog submits. An empty Color keeps the current one.
type AnnotationEdit struct {
	Name        string
	Description string
	Color       string
}

// CreateAnnotation draws a provisional overlay, asks for a name and an optional
// description, and persists the annotation. The overlay is removed again if the
// user cancels or the server rejects it. New annotations are not editable until
// the user picks them, even in edit mode.
func (c *Controller) CreateAnnotation(ctx context.Context, jobID int64, in NewAnnotation) (entity.Annotation, error) {
	const action = "saving annotation"

	if err := c.writable("create annotation"); err != nil {
		return entity.Annotation{}, c.fail(ctx, action, err)
	}
	if _, ok := c.markers.Job(jobID); !ok {
		return entity.Annotation{}, c.fail(ctx, action, apperr.Validation("create annotation", "Error: No job selected for annotation"))
	}
	if err := entity.ValidateGeometry(in.Kind, in.Geometry); err != nil {
		return entity.Annotation{}, c.fail(ctx, action, apperr.Validation("create annotation", err.Error()))
	}

	draft := entity.NewDraft(in.Kind, in.Geometry, in.Style.WithDefaults())
	ov, err := overlay.Build(c.provider, draft.Annotation(jobID))
	if err != nil {
		return entity.Annotation{}, c.fail(ctx, action, fmt.Errorf("draw provisional overlay: %w", err))
	}
	discard := func() {
		if err := ov.Dispose(); err != nil {
			c.log.WarnContext(ctx, "dispose provisional overlay", "draft_id", draft.DraftID, "error", err)
		}
	}

	name, ok, err := c.prompter.PromptText(ctx, "New "+in.Kind.Title(), "Name",
		fmt.Sprintf("Enter a name for this %s", in.Kind))
	if err != nil {
		discard()
		return entity.Annotation{}, err
	}
	if !ok {
		discard()
		return entity.Annotation{}, ErrCancelled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		discard()
		return entity.Annotation{}, c.fail(ctx, action, apperr.Validation("create annotation", "Name is required"))
	}

	desc, ok, err := c.prompter.PromptText(ctx, "New "+in.Kind.Title(), "Description",
		fmt.Sprintf("Enter a description for this %s (optional)", in.Kind))
	if err != nil && !errors.Is(err, prompt.ErrNoAnswer) {
		discard()
		return entity.Annotation{}, err
	}
	if !ok {
		desc = ""
	}

	draft.Name = name
	draft.Description = strings.TrimSpace(desc)

	saved, err := c.api.CreateAnnotation(ctx, jobID, draft)
	if err != nil {
		discard()
		return entity.Annotation{}, c.fail(ctx, action, err)
	}
	if err := c.store.Add(jobID, saved, ov); err != nil {
		discard()
		return entity.Annotation{}, c.fail(ctx, action, err)
	}
	if e, ok := c.store.FindByID(saved.ID); ok {
		c.sync.ApplyStyle(e, overlaysync.ColorOverrides{})
	}
	c.sync.RebuildConnectionLines(jobID)

	c.log.InfoContext(ctx, "annotation created", "job_id", jobID, "annotation_id", saved.ID, "kind", saved.Kind, "draft_id", draft.DraftID)
	c.notifier.Notify(fmt.Sprintf("%s %q created successfully!", saved.Kind.Title(), saved.Name), entity.NotifySuccess)
	return saved, nil
}

// EditAnnotation applies the edit dialog locally: name, description and a
// color placed where the kind renders it. The change shows on the map at once
// and the annotation becomes dirty; nothing is sent. A nil edit is a cancelled
// dialog.
func (c *Controller) EditAnnotation(ctx context.Context, id int64, edit *AnnotationEdit) (entity.Annotation, error) {
	const action = "updating annotation"

	if err := c.writable("edit annotation"); err != nil {
		return entity.Annotation{}, c.fail(ctx, action, err)
	}
	e, ok := c.store.FindByID(id)
	if !ok {
		return entity.Annotation{}, c.notFound(ctx, id)
	}

	c.tracker.BeginEdit(id)
	if edit == nil {
		c.tracker.Cancel(id)
		return e.Annotation, ErrCancelled
	}

	name := strings.TrimSpace(edit.Name)
	if name == "" {
		c.tracker.Cancel(id)
		return e.Annotation, c.fail(ctx, action, apperr.Validation("edit annotation", "Name is required"))
	}
	current := e.Annotation.Style.PrimaryColor()
	color := edit.Color
	if color == "" {
		color = current
	}
	if !hexColor.MatchString(color) {
		c.tracker.Cancel(id)
		return e.Annotation, c.fail(ctx, action, apperr.Validation("edit annotation", fmt.Sprintf("Invalid color %q", color)))
	}

	if name == e.Annotation.Name && edit.Description == e.Annotation.Description && strings.EqualFold(color, current) {
		c.tracker.Cancel(id)
		c.notifier.Notify("No changes made", entity.NotifyInfo)
		return e.Annotation, nil
	}

	updated, ok := c.store.Update(id, func(a *entity.Annotation) {
		a.Name = name
		a.Description = edit.Description
		a.Style = a.Style.WithColor(a.Kind, color)
	})
	if !ok {
		c.tracker.Cancel(id)
		return entity.Annotation{}, c.notFound(ctx, id)
	}
	c.sync.ApplyStyle(updated, overlaysync.ColorOverrides{})
	c.tracker.MarkDirty(id)

	c.notifier.Notify(`Changes made - click "Save Changes" to save to database`, entity.NotifyInfo)
	return updated.Annotation, nil
}

// ErrSuperseded means the annotation changed while its save was in flight.
// The server holds the saved copy; the newer local changes stay dirty.
var ErrSuperseded = errors.New("annotation changed while it was being saved")

// SaveAnnotation sends the full current state of one annotation.
func (c *Controller) SaveAnnotation(ctx context.Context, id int64) (entity.Annotation, error) {
	a, err := c.saveOne(ctx, id)
	if errors.Is(err, ErrSuperseded) {
		c.notifier.Notify(`Annotation saved, but it changed in the meantime - click "Save Changes" to save the latest changes`, entity.NotifyInfo)
		return a, nil
	}
	if err != nil {
		return entity.Annotation{}, c.fail(ctx, "saving annotation", err)
	}
	c.notifier.Notify("Annotation saved successfully!", entity.NotifySuccess)
	return a, nil
}

// saveOne persists an annotation without notifying: snapshot with live
// geometry, full PUT, server copy stored, state back to clean. If the
// annotation was edited while the PUT was pending, the local copy is kept,
// it stays dirty and ErrSuperseded is returned with it.
func (c *Controller) saveOne(ctx context.Context, id int64) (entity.Annotation, error) {
	if err := c.writable("save annotation"); err != nil {
		return entity.Annotation{}, err
	}
	rev := c.tracker.Revision(id)
	snap, err := c.store.Snapshot(id)
	if err != nil {
		return entity.Annotation{}, err
	}

	server, err := c.api.UpdateAnnotation(ctx, snap)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			c.enterReadOnly()
		}
		return entity.Annotation{}, err
	}

	var (
		e     store.Entry
		found bool
	)
	resolved := c.tracker.ResolveIf(id, rev, func() {
		e, found = c.store.Reconcile(id, server)
	})
	if !resolved {
		c.log.InfoContext(ctx, "annotation changed during save, keeping local changes", "annotation_id", id)
		if local, err := c.store.Snapshot(id); err == nil {
			return local, ErrSuperseded
		}
		return server, ErrSuperseded
	}
	if !found {
		// removed while the request was in flight
		return server, nil
	}
	c.log.InfoContext(ctx, "annotation saved", "job_id", e.Annotation.JobID, "annotation_id", id)
	return e.Annotation, nil
}

// FinishEditing closes the edit of one annotation. Unsaved changes are saved
// or reverted as the prompter decides.
func (c *Controller) FinishEditing(ctx context.Context, id int64) error {
	if _, ok := c.store.FindByID(id); !ok {
		return c.notFound(ctx, id)
	}
	if !c.tracker.IsDirty(id) {
		c.tracker.Cancel(id)
		c.notifier.Notify("Editing finished", entity.NotifyInfo)
		return nil
	}

	save, err := c.prompter.Confirm(ctx, "You have unsaved changes. Do you want to save them?")
	if err != nil {
		return err
	}
	if save {
		_, err := c.SaveAnnotation(ctx, id)
		return err
	}
	return c.RevertAnnotation(ctx, id)
}

// RevertAnnotation throws away local changes of one annotation: the job's
// annotations are fetched again and only this one is redrawn from the
// server copy, so unsaved changes of its siblings survive.
func (c *Controller) RevertAnnotation(ctx context.Context, id int64) error {
	const action = "reverting changes"

	jobID, ok := c.store.JobOf(id)
	if !ok {
		return c.notFound(ctx, id)
	}

	list, err := c.api.FetchAnnotations(ctx, jobID)
	if err != nil {
		return c.fail(ctx, action, err)
	}

	var server *entity.Annotation
	for i := range list {
		if list[i].ID == id {
			server = &list[i]
			break
		}
	}

	c.sync.Release(id)
	c.tracker.Resolve(id)

	if server == nil {
		c.store.Remove(jobID, id)
		c.sync.RebuildConnectionLines(jobID)
		c.log.InfoContext(ctx, "annotation gone on server, removed", "job_id", jobID, "annotation_id", id)
		c.notifier.Notify("Changes reverted", entity.NotifyInfo)
		return nil
	}

	a := *server
	a.JobID = jobID
	ov, err := overlay.Build(c.provider, a)
	if err != nil {
		return c.fail(ctx, action, fmt.Errorf("redraw annotation %d: %w", id, err))
	}
	if err := c.store.Add(jobID, a, ov); err != nil {
		_ = ov.Dispose()
		return c.fail(ctx, action, err)
	}
	if c.isEditing(jobID) {
		if e, ok := c.store.FindByID(id); ok {
			c.sync.SetEditable(e, true)
		}
	}
	c.sync.RebuildConnectionLines(jobID)

	c.notifier.Notify("Changes reverted", entity.NotifyInfo)
	return nil
}

// DeleteAnnotation asks for confirmation, deletes on the server, then removes
// the overlay.
func (c *Controller) DeleteAnnotation(ctx context.Context, id int64) error {
	const action = "deleting annotation"

	if err := c.writable("delete annotation"); err != nil {
		return c.fail(ctx, action, err)
	}
	e, ok := c.store.FindByID(id)
	if !ok {
		return c.notFound(ctx, id)
	}

	confirmed, err := c.prompter.Confirm(ctx, fmt.Sprintf(
		"Are you sure you want to delete the annotation %q?\n\nThis action cannot be undone.", e.Annotation.Name))
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrCancelled
	}

	if err := c.api.DeleteAnnotation(ctx, id); err != nil {
		return c.fail(ctx, action, err)
	}

	jobID := e.Annotation.JobID
	c.sync.Release(id)
	c.store.Remove(jobID, id)
	c.tracker.Resolve(id)
	c.sync.RebuildConnectionLines(jobID)

	c.log.InfoContext(ctx, "annotation deleted", "job_id", jobID, "annotation_id", id)
	c.notifier.Notify("Annotation deleted successfully!", entity.NotifySuccess)
	return nil
}
