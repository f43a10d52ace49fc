package service

import (
	"context"
	"errors"
	"fmt"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/jobmarker"
)

// ErrPartialSave means a batch save left some annotations dirty. The
// BatchResult returned with it lists which ones and why.
var ErrPartialSave = errors.New("some annotations could not be saved")

type ItemError struct {
	AnnotationID int64  `json:"annotation_id"`
	Message      string `json:"message"`
	Err          error  `json:"-"`
}

type BatchResult struct {
	Saved  []int64     `json:"saved"`
	Failed []ItemError `json:"failed"`
}

// EnterEditMode makes the job's marker draggable and its lines and polygons
// editable. Only one job is in edit mode at a time: another job in edit mode
// leaves it first through the normal exit flow, and if that needs a decision
// that was not given, this job does not enter.
func (c *Controller) EnterEditMode(ctx context.Context, jobID int64) error {
	if _, ok := c.markers.Job(jobID); !ok {
		return apperr.NotFound("enter edit mode", fmt.Sprintf("job %d is not on the map", jobID))
	}
	if err := c.writable("enter edit mode"); err != nil {
		return c.fail(ctx, "enabling annotation editing", err)
	}

	if cur, ok := c.EditingJob(); ok {
		if cur == jobID {
			return nil
		}
		if _, err := c.ExitEditMode(ctx, cur); err != nil {
			return fmt.Errorf("leave edit mode of job %d: %w", cur, err)
		}
	}

	// Only entries of annotations that are gone are stale. Other jobs may
	// hold unsaved edits made outside edit mode.
	if n := c.tracker.Prune(func(id int64) bool {
		_, ok := c.store.FindByID(id)
		return ok
	}); n > 0 {
		c.log.DebugContext(ctx, "dropped stale edit state", "count", n)
	}
	if err := c.markers.SetDraggable(jobID, true); err != nil {
		c.log.WarnContext(ctx, "make marker draggable", "job_id", jobID, "error", err)
	}
	for _, e := range c.store.Entries(jobID) {
		c.sync.SetEditable(e, true)
	}
	c.sync.RebuildConnectionLines(jobID)

	c.mu.Lock()
	c.editingJob = jobID
	c.mu.Unlock()

	c.log.InfoContext(ctx, "edit mode entered", "job_id", jobID)
	c.notifier.Notify("Annotation editing enabled - you can now edit lines and polygons, or click on the map to add new annotations", entity.NotifyInfo)
	return nil
}

// ExitEditMode leaves edit mode. With unsaved changes the prompter decides:
// save all of them (failures stay dirty, the job stays in edit mode and the
// result lists them) or revert them all by reloading the job. Without an
// answer nothing changes.
func (c *Controller) ExitEditMode(ctx context.Context, jobID int64) (BatchResult, error) {
	if !c.isEditing(jobID) {
		return BatchResult{}, nil
	}

	dirty := c.tracker.DirtyAmong(c.store.IDs(jobID))
	if len(dirty) == 0 {
		c.finishEditMode(ctx, jobID)
		c.notifier.Notify("Annotation editing disabled", entity.NotifyInfo)
		return BatchResult{}, nil
	}

	save, err := c.prompter.Confirm(ctx, fmt.Sprintf(
		"You have %d unsaved annotation changes. Do you want to save them before exiting edit mode?", len(dirty)))
	if err != nil {
		return BatchResult{}, err
	}

	if save {
		res, err := c.saveAll(ctx, dirty)
		if err != nil {
			if apperr.IsAborted(err) {
				return res, err
			}
			c.notifier.Notify("Error saving some annotations. Please try again.", entity.NotifyError)
			return res, err
		}
		c.finishEditMode(ctx, jobID)
		c.notifier.Notify("Annotation editing saved and disabled", entity.NotifySuccess)
		return res, nil
	}

	if err := c.reloadJob(ctx, jobID); err != nil {
		return BatchResult{}, c.fail(ctx, "reverting changes", err)
	}
	c.finishEditMode(ctx, jobID)
	c.notifier.Notify(fmt.Sprintf("Reverted %d annotation changes", len(dirty)), entity.NotifyInfo)
	return BatchResult{}, nil
}

func (c *Controller) finishEditMode(ctx context.Context, jobID int64) {
	if err := c.markers.SetDraggable(jobID, false); err != nil && !errors.Is(err, jobmarker.ErrUnknownJob) {
		c.log.WarnContext(ctx, "make marker fixed", "job_id", jobID, "error", err)
	}
	for _, e := range c.store.Entries(jobID) {
		c.sync.SetEditable(e, false)
	}
	// Dirty entries here were edited after the decision; they stay dirty.
	for _, id := range c.store.IDs(jobID) {
		c.tracker.Cancel(id)
	}
	c.sync.RebuildConnectionLines(jobID)

	c.mu.Lock()
	if c.editingJob == jobID {
		c.editingJob = 0
	}
	c.mu.Unlock()
	c.log.InfoContext(ctx, "edit mode left", "job_id", jobID)
}

// SaveJobChanges saves every dirty annotation of the job without leaving edit mode.
func (c *Controller) SaveJobChanges(ctx context.Context, jobID int64) (BatchResult, error) {
	dirty := c.tracker.DirtyAmong(c.store.IDs(jobID))
	if len(dirty) == 0 {
		c.notifier.Notify("No changes to save for this job", entity.NotifyInfo)
		return BatchResult{}, nil
	}

	res, err := c.saveAll(ctx, dirty)
	switch {
	case apperr.IsAborted(err):
		return res, err
	case err != nil:
		c.notifier.Notify(fmt.Sprintf("Saved %d of %d annotation changes. Error saving the rest. Please try again.",
			len(res.Saved), len(dirty)), entity.NotifyError)
		return res, err
	}
	c.notifier.Notify(fmt.Sprintf("Successfully saved %d annotation changes for this job!", len(res.Saved)), entity.NotifySuccess)
	return res, nil
}

// RevertJobChanges drops every unsaved change of the job after confirmation.
func (c *Controller) RevertJobChanges(ctx context.Context, jobID int64) (int, error) {
	dirty := c.tracker.DirtyAmong(c.store.IDs(jobID))
	if len(dirty) == 0 {
		c.notifier.Notify("No changes to revert for this job", entity.NotifyInfo)
		return 0, nil
	}

	ok, err := c.prompter.Confirm(ctx, fmt.Sprintf(
		"Are you sure you want to revert all %d unsaved changes for this job? This cannot be undone.", len(dirty)))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrCancelled
	}

	if err := c.reloadJob(ctx, jobID); err != nil {
		return 0, c.fail(ctx, "reverting changes", err)
	}
	c.notifier.Notify(fmt.Sprintf("Successfully reverted %d annotation changes for this job", len(dirty)), entity.NotifySuccess)
	return len(dirty), nil
}

// saveAll saves one annotation after the other. A failure does not stop the
// batch and nothing already saved is rolled back; an abort stops it. An
// annotation edited during its save counts as failed: it is still dirty.
func (c *Controller) saveAll(ctx context.Context, ids []int64) (BatchResult, error) {
	res := BatchResult{Saved: []int64{}, Failed: []ItemError{}}
	for _, id := range ids {
		_, err := c.saveOne(ctx, id)
		if c.metrics != nil {
			c.metrics.RecordBatchSave(err == nil)
		}
		if err == nil {
			res.Saved = append(res.Saved, id)
			continue
		}
		if apperr.IsAborted(err) {
			return res, err
		}
		msg := apperr.UserMessage("saving annotation", err)
		if errors.Is(err, ErrSuperseded) {
			msg = "Annotation changed while saving. Please save again."
		}
		c.log.WarnContext(ctx, "batch save item failed", "annotation_id", id, "error", err)
		res.Failed = append(res.Failed, ItemError{
			AnnotationID: id,
			Message:      msg,
			Err:          err,
		})
	}
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: %d of %d failed", ErrPartialSave, len(res.Failed), len(ids))
	}
	return res, nil
}

// reloadJob replaces all local state of the job with the server's.
func (c *Controller) reloadJob(ctx context.Context, jobID int64) error {
	before := c.store.IDs(jobID)
	if _, err := c.store.Load(ctx, jobID); err != nil {
		return err
	}
	c.afterReload(jobID, before)
	return nil
}

// DragStart hides the job's connection lines while the marker follows the cursor.
func (c *Controller) DragStart(jobID int64) error {
	if !c.markers.Draggable(jobID) {
		if _, ok := c.markers.Job(jobID); !ok {
			return jobmarker.ErrUnknownJob
		}
		return jobmarker.ErrNotDraggable
	}
	c.sync.HideConnectionLines(jobID)
	return nil
}

func (c *Controller) Drag(jobID int64, pos entity.LatLng) error {
	if err := c.markers.MoveMarker(jobID, pos); err != nil {
		return err
	}
	c.sync.RebuildConnectionLines(jobID)
	return nil
}

// DragEnd commits the new position to the job locally.
func (c *Controller) DragEnd(jobID int64, pos entity.LatLng) error {
	if !c.markers.Draggable(jobID) {
		if _, ok := c.markers.Job(jobID); !ok {
			return jobmarker.ErrUnknownJob
		}
		return jobmarker.ErrNotDraggable
	}
	if err := c.markers.CommitPosition(jobID, pos); err != nil {
		return err
	}
	c.sync.RebuildConnectionLines(jobID)
	c.log.Info("job moved", "job_id", jobID, "lat", pos.Lat, "lng", pos.Lng)
	return nil
}

// ResetPosition moves the job back to where its marker was first created.
func (c *Controller) ResetPosition(jobID int64) (entity.LatLng, error) {
	pos, err := c.markers.ResetPosition(jobID)
	if err != nil {
		return entity.LatLng{}, err
	}
	c.sync.RebuildConnectionLines(jobID)
	c.notifier.Notify("Job position reset to its original location", entity.NotifyInfo)
	return pos, nil
}
