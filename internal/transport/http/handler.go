package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/notify"
	"job-annotation-service/internal/prompt"
	"job-annotation-service/internal/render/scene"
	"job-annotation-service/internal/service"
)

// Handler serves the map session: the browser drives the controller through
// it, draws GET /scene and reports geometry-handle edits back.
type Handler struct {
	ctrl  *service.Controller
	scene *scene.Scene
	feed  notify.Feed
}

func NewHandler(ctrl *service.Controller, sc *scene.Scene, feed notify.Feed) *Handler {
	return &Handler{ctrl: ctrl, scene: sc, feed: feed}
}

// answersDTO carries the user's replies to the dialogs an operation opens.
type answersDTO struct {
	Confirm     *bool   `json:"confirm,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Cancel      bool    `json:"cancel,omitempty"`
}

func (a answersDTO) withContext(r *http.Request) *http.Request {
	ans := prompt.Answers{Confirm: a.Confirm, Cancel: a.Cancel, Text: map[string]string{}}
	if a.Name != nil {
		ans.Text["name"] = *a.Name
	}
	if a.Description != nil {
		ans.Text["description"] = *a.Description
	}
	return r.WithContext(prompt.WithAnswers(r.Context(), ans))
}

type registerJobDTO struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Type     string        `json:"type"`
	Location entity.LatLng `json:"location"`
}

type createAnnotationDTO struct {
	answersDTO
	AnnotationType string              `json:"annotationType"`
	Coordinates    []entity.LatLng     `json:"coordinates"`
	StyleOptions   entity.StyleOptions `json:"styleOptions"`
}

type editAnnotationDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Cancel      bool   `json:"cancel,omitempty"`
}

type batchResp struct {
	Message string              `json:"message,omitempty"`
	Result  service.BatchResult `json:"result"`
}

type revertResp struct {
	Reverted int `json:"reverted"`
}

type setPathDTO struct {
	Path []entity.LatLng `json:"path"`
}

type tokenDTO struct {
	Token string `json:"token"`
}

type sessionResp struct {
	ReadOnly   bool  `json:"read_only"`
	EditingJob int64 `json:"editing_job,omitempty"`
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// RegisterJob godoc
// @Summary Put a job on the map
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body registerJobDTO true "job"
// @Success 201 {object} service.JobView
// @Failure 400 {object} apiError
// @Router /jobs [post]
func (h *Handler) RegisterJob(w http.ResponseWriter, r *http.Request) {
	var dto registerJobDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	job := entity.Job{ID: dto.ID, Title: dto.Title, Type: dto.Type, Location: dto.Location}
	if err := h.ctrl.RegisterJob(job); err != nil {
		writeServiceErr(w, "registering job", err)
		return
	}
	v, _ := h.ctrl.Job(dto.ID)
	writeJSON(w, http.StatusCreated, v)
}

// ListJobs godoc
// @Summary Jobs on the map
// @Tags jobs
// @Produce json
// @Success 200 {array} service.JobView
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Jobs())
}

// GetJob godoc
// @Summary Job with its edit mode, marker position and dirty annotations
// @Tags jobs
// @Produce json
// @Param jobId path int true "job id"
// @Success 200 {object} service.JobView
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{jobId} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	v, ok := h.ctrl.Job(jobID)
	if !ok {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RemoveJob godoc
// @Summary Remove a job and its overlays from the map
// @Tags jobs
// @Param jobId path int true "job id"
// @Success 204
// @Failure 404 {object} apiError
// @Router /jobs/{jobId} [delete]
func (h *Handler) RemoveJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if !h.ctrl.RemoveJob(jobID) {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadAnnotations godoc
// @Summary Reload the job's annotations from the annotation API
// @Tags annotations
// @Produce json
// @Accept json
// @Param jobId path int true "job id"
// @Param request body answersDTO false "save (true) or revert (false) unsaved changes first"
// @Success 200 {array} service.AnnotationView
// @Failure 401 {object} apiError
// @Failure 404 {object} apiError
// @Failure 428 {object} apiError
// @Failure 502 {object} apiError
// @Router /jobs/{jobId}/annotations/load [post]
func (h *Handler) LoadAnnotations(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	if _, err := h.ctrl.LoadAnnotations(r.Context(), jobID); err != nil {
		writeServiceErr(w, "loading annotations", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Annotations(jobID))
}

// ListAnnotations godoc
// @Summary Annotations of a job with their local edit state
// @Tags annotations
// @Produce json
// @Param jobId path int true "job id"
// @Success 200 {array} service.AnnotationView
// @Router /jobs/{jobId}/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Annotations(jobID))
}

// CreateAnnotation godoc
// @Summary Create an annotation from a shape drawn on the map
// @Description name and description answer the dialogs; cancel backs out.
// @Tags annotations
// @Accept json
// @Produce json
// @Param jobId path int true "job id"
// @Param request body createAnnotationDTO true "shape and dialog answers"
// @Success 201 {object} entity.Annotation
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Failure 428 {object} apiError
// @Failure 502 {object} apiError
// @Router /jobs/{jobId}/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var dto createAnnotationDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	kind, err := entity.ParseKind(dto.AnnotationType)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	r = dto.answersDTO.withContext(r)
	a, err := h.ctrl.CreateAnnotation(r.Context(), jobID, service.NewAnnotation{
		Kind:     kind,
		Geometry: dto.Coordinates,
		Style:    dto.StyleOptions,
	})
	if err != nil {
		writeServiceErr(w, "saving annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAnnotation godoc
// @Summary Annotation with its live geometry and edit state
// @Tags annotations
// @Produce json
// @Param id path int true "annotation id"
// @Success 200 {object} service.AnnotationView
// @Failure 404 {object} apiError
// @Router /annotations/{id} [get]
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	v, ok := h.ctrl.Annotation(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "Annotation not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// EditAnnotation godoc
// @Summary Apply the edit dialog locally
// @Description The annotation becomes dirty; nothing is sent until it is saved.
// @Tags annotations
// @Accept json
// @Produce json
// @Param id path int true "annotation id"
// @Param request body editAnnotationDTO true "dialog values"
// @Success 200 {object} entity.Annotation
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /annotations/{id} [patch]
func (h *Handler) EditAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	var dto editAnnotationDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	var edit *service.AnnotationEdit
	if !dto.Cancel {
		edit = &service.AnnotationEdit{Name: dto.Name, Description: dto.Description, Color: dto.Color}
	}
	a, err := h.ctrl.EditAnnotation(r.Context(), id, edit)
	if err != nil {
		writeServiceErr(w, "updating annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SaveAnnotation godoc
// @Summary Save one annotation
// @Tags annotations
// @Produce json
// @Param id path int true "annotation id"
// @Success 200 {object} entity.Annotation
// @Failure 401 {object} apiError
// @Failure 404 {object} apiError
// @Failure 502 {object} apiError
// @Router /annotations/{id}/save [post]
func (h *Handler) SaveAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	a, err := h.ctrl.SaveAnnotation(r.Context(), id)
	if err != nil {
		writeServiceErr(w, "saving annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// FinishEditing godoc
// @Summary Finish editing one annotation
// @Description With unsaved changes, confirm=true saves and confirm=false reverts.
// @Tags annotations
// @Accept json
// @Param id path int true "annotation id"
// @Param request body answersDTO false "confirm"
// @Success 204
// @Failure 428 {object} apiError
// @Router /annotations/{id}/finish [post]
func (h *Handler) FinishEditing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	if err := h.ctrl.FinishEditing(r.Context(), id); err != nil {
		writeServiceErr(w, "saving annotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevertAnnotation godoc
// @Summary Drop local changes of one annotation
// @Tags annotations
// @Param id path int true "annotation id"
// @Success 204
// @Failure 404 {object} apiError
// @Failure 502 {object} apiError
// @Router /annotations/{id}/revert [post]
func (h *Handler) RevertAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.ctrl.RevertAnnotation(r.Context(), id); err != nil {
		writeServiceErr(w, "reverting changes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAnnotation godoc
// @Summary Delete an annotation
// @Tags annotations
// @Accept json
// @Param id path int true "annotation id"
// @Param request body answersDTO true "confirm"
// @Success 204
// @Failure 409 {object} apiError
// @Failure 428 {object} apiError
// @Router /annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	if err := h.ctrl.DeleteAnnotation(r.Context(), id); err != nil {
		writeServiceErr(w, "deleting annotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnterEditMode godoc
// @Summary Enter edit mode for a job
// @Description A job already in edit mode leaves it first; body answers its save prompt.
// @Tags edit-mode
// @Accept json
// @Produce json
// @Param jobId path int true "job id"
// @Param request body answersDTO false "confirm for the job leaving edit mode"
// @Success 200 {object} service.JobView
// @Failure 404 {object} apiError
// @Failure 428 {object} apiError
// @Router /jobs/{jobId}/edit-mode [post]
func (h *Handler) EnterEditMode(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	if err := h.ctrl.EnterEditMode(r.Context(), jobID); err != nil {
		writeServiceErr(w, "enabling annotation editing", err)
		return
	}
	v, _ := h.ctrl.Job(jobID)
	writeJSON(w, http.StatusOK, v)
}

// ExitEditMode godoc
// @Summary Leave edit mode
// @Description With unsaved changes, confirm=true saves all and confirm=false reverts all.
// @Tags edit-mode
// @Accept json
// @Produce json
// @Param jobId path int true "job id"
// @Param request body answersDTO false "confirm"
// @Success 200 {object} batchResp
// @Failure 428 {object} apiError
// @Failure 502 {object} batchResp
// @Router /jobs/{jobId}/edit-mode [delete]
func (h *Handler) ExitEditMode(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	res, err := h.ctrl.ExitEditMode(r.Context(), jobID)
	h.writeBatch(w, res, err)
}

// SaveJobChanges godoc
// @Summary Save every dirty annotation of a job
// @Tags edit-mode
// @Produce json
// @Param jobId path int true "job id"
// @Success 200 {object} batchResp
// @Failure 502 {object} batchResp
// @Router /jobs/{jobId}/save [post]
func (h *Handler) SaveJobChanges(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	res, err := h.ctrl.SaveJobChanges(r.Context(), jobID)
	h.writeBatch(w, res, err)
}

func (h *Handler) writeBatch(w http.ResponseWriter, res service.BatchResult, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, batchResp{Result: res})
	case errors.Is(err, service.ErrPartialSave):
		writeJSON(w, http.StatusBadGateway, batchResp{Message: "Error saving some annotations. Please try again.", Result: res})
	default:
		writeServiceErr(w, "saving annotations", err)
	}
}

// RevertJobChanges godoc
// @Summary Revert every dirty annotation of a job
// @Tags edit-mode
// @Accept json
// @Produce json
// @Param jobId path int true "job id"
// @Param request body answersDTO true "confirm"
// @Success 200 {object} revertResp
// @Failure 409 {object} apiError
// @Failure 428 {object} apiError
// @Router /jobs/{jobId}/revert [post]
func (h *Handler) RevertJobChanges(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var dto answersDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	r = dto.withContext(r)
	n, err := h.ctrl.RevertJobChanges(r.Context(), jobID)
	if err != nil {
		writeServiceErr(w, "reverting changes", err)
		return
	}
	writeJSON(w, http.StatusOK, revertResp{Reverted: n})
}

// DragStart godoc
// @Summary Start dragging the job marker
// @Tags marker
// @Param jobId path int true "job id"
// @Success 204
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{jobId}/drag/start [post]
func (h *Handler) DragStart(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if err := h.ctrl.DragStart(jobID); err != nil {
		writeServiceErr(w, "moving job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Drag godoc
// @Summary Move the job marker while dragging
// @Tags marker
// @Accept json
// @Param jobId path int true "job id"
// @Param request body entity.LatLng true "position"
// @Success 204
// @Failure 409 {object} apiError
// @Router /jobs/{jobId}/drag/move [post]
func (h *Handler) Drag(w http.ResponseWriter, r *http.Request) {
	h.drag(w, r, h.ctrl.Drag)
}

// DragEnd godoc
// @Summary Drop the job marker and commit the position
// @Tags marker
// @Accept json
// @Param jobId path int true "job id"
// @Param request body entity.LatLng true "position"
// @Success 204
// @Failure 409 {object} apiError
// @Router /jobs/{jobId}/drag/end [post]
func (h *Handler) DragEnd(w http.ResponseWriter, r *http.Request) {
	h.drag(w, r, h.ctrl.DragEnd)
}

func (h *Handler) drag(w http.ResponseWriter, r *http.Request, fn func(int64, entity.LatLng) error) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var pos entity.LatLng
	if err := decodeOptional(r, &pos); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := fn(jobID, pos); err != nil {
		writeServiceErr(w, "moving job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPosition godoc
// @Summary Move the job back to its original position
// @Tags marker
// @Produce json
// @Param jobId path int true "job id"
// @Success 200 {object} entity.LatLng
// @Failure 404 {object} apiError
// @Router /jobs/{jobId}/reset-position [post]
func (h *Handler) ResetPosition(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return
	}
	pos, err := h.ctrl.ResetPosition(jobID)
	if err != nil {
		writeServiceErr(w, "resetting job position", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// Scene godoc
// @Summary Every overlay currently on the map
// @Tags scene
// @Produce json
// @Success 200 {array} scene.View
// @Router /scene [get]
func (h *Handler) Scene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scene.Snapshot())
}

// SetPath godoc
// @Summary Report a geometry-handle edit of a line or polygon
// @Tags scene
// @Accept json
// @Param id path string true "overlay id"
// @Param request body setPathDTO true "new path"
// @Success 204
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /scene/objects/{id}/path [put]
func (h *Handler) SetPath(w http.ResponseWriter, r *http.Request) {
	var dto setPathDTO
	if err := decodeOptional(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(dto.Path) == 0 {
		writeErr(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := h.scene.SetPath(chi.URLParam(r, "id"), dto.Path); err != nil {
		writeServiceErr(w, "editing shape", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notifications godoc
// @Summary Drain pending notifications, oldest first
// @Tags session
// @Produce json
// @Param max query int false "maximum to return (default 50)"
// @Success 200 {array} entity.Notification
// @Router /notifications [get]
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid max")
			return
		}
		limit = n
	}
	list, err := h.feed.Drain(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}
	if list == nil {
		list = []entity.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Session godoc
// @Summary Session state
// @Tags session
// @Produce json
// @Success 200 {object} sessionResp
// @Router /session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	resp := sessionResp{ReadOnly: h.ctrl.ReadOnly()}
	if id, ok := h.ctrl.EditingJob(); ok {
		resp.EditingJob = id
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetToken godoc
// @Summary Install a fresh API token and leave read-only mode
// @Tags session
// @Accept json
// @Produce json
// @Param request body tokenDTO true "token"
// @Success 200 {object} sessionResp
// @Failure 400 {object} apiError
// @Router /session/token [put]
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	var dto tokenDTO
	if err := decodeOptional(r, &dto); err != nil || dto.Token == "" {
		writeErr(w, http.StatusBadRequest, "token is required")
		return
	}
	h.ctrl.ResumeSession(dto.Token)
	h.Session(w, r)
}
