package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/service"
)

// APIHandler is the reference annotations API backed by Postgres. Its wire
// format is the one the map client speaks: camelCase requests, snake_case rows,
// {"error": "..."} failures.
type APIHandler struct {
	svc *service.AnnotationService
	log *slog.Logger
}

func NewAPIHandler(svc *service.AnnotationService) *APIHandler {
	return &APIHandler{svc: svc, log: slog.Default().With("component", "annotations_api")}
}

type annotationBody struct {
	AnnotationType string              `json:"annotationType"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Coordinates    []entity.LatLng     `json:"coordinates"`
	StyleOptions   entity.StyleOptions `json:"styleOptions"`
}

func (b annotationBody) request() service.SaveAnnotationRequest {
	return service.SaveAnnotationRequest{
		Kind:        b.AnnotationType,
		Name:        b.Name,
		Description: b.Description,
		Coordinates: b.Coordinates,
		Style:       b.StyleOptions,
	}
}

type annotationRow struct {
	ID             int64               `json:"id"`
	JobID          int64               `json:"job_id"`
	AnnotationType entity.Kind         `json:"annotation_type"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Coordinates    []entity.LatLng     `json:"coordinates"`
	StyleOptions   entity.StyleOptions `json:"style_options"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

func toRow(a entity.Annotation) annotationRow {
	return annotationRow{
		ID:             a.ID,
		JobID:          a.JobID,
		AnnotationType: a.Kind,
		Name:           a.Name,
		Description:    a.Description,
		Coordinates:    a.Geometry,
		StyleOptions:   a.Style,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// fail answers with the message the map client shows. Validation and
// not-found keep their own message; anything else is logged and hidden.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, generic string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, refError{Error: apperr.UserMessage("", err)})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, refError{Error: "Annotation not found"})
	default:
		h.log.ErrorContext(r.Context(), generic, "error", err)
		writeJSON(w, http.StatusInternalServerError, refError{Error: generic})
	}
}

// ListJobAnnotations godoc
// @Summary Annotations of a job, oldest first
// @Tags annotations-api
// @Produce json
// @Security BearerAuth
// @Param jobId path int true "job id"
// @Success 200 {array} annotationRow
// @Failure 401 {object} refError
// @Failure 500 {object} refError
// @Router /api/jobs/{jobId}/annotations [get]
func (h *APIHandler) ListJobAnnotations(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid job id"})
		return
	}
	list, err := h.svc.List(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, "Failed to fetch annotations", err)
		return
	}
	rows := make([]annotationRow, 0, len(list))
	for _, a := range list {
		rows = append(rows, toRow(a))
	}
	writeJSON(w, http.StatusOK, rows)
}

// CreateJobAnnotation godoc
// @Summary Create an annotation
// @Tags annotations-api
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param jobId path int true "job id"
// @Param request body annotationBody true "annotation"
// @Success 201 {object} annotationRow
// @Failure 400 {object} refError
// @Failure 401 {object} refError
// @Failure 500 {object} refError
// @Router /api/jobs/{jobId}/annotations [post]
func (h *APIHandler) CreateJobAnnotation(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "jobId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid job id"})
		return
	}
	var body annotationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid json"})
		return
	}
	a, err := h.svc.Create(r.Context(), jobID, body.request())
	if err != nil {
		h.fail(w, r, "Failed to create annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRow(a))
}

// UpdateAnnotation godoc
// @Summary Replace name, description, coordinates and style of an annotation
// @Tags annotations-api
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "annotation id"
// @Param request body annotationBody true "annotation"
// @Success 200 {object} annotationRow
// @Failure 400 {object} refError
// @Failure 401 {object} refError
// @Failure 404 {object} refError
// @Failure 500 {object} refError
// @Router /api/annotations/{id} [put]
func (h *APIHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid id"})
		return
	}
	var body annotationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid json"})
		return
	}
	a, err := h.svc.Update(r.Context(), id, body.request())
	if err != nil {
		h.fail(w, r, "Failed to update annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, toRow(a))
}

// DeleteAnnotation godoc
// @Summary Delete an annotation
// @Tags annotations-api
// @Produce json
// @Security BearerAuth
// @Param id path int true "annotation id"
// @Success 200 {object} refMessage
// @Failure 401 {object} refError
// @Failure 404 {object} refError
// @Failure 500 {object} refError
// @Router /api/annotations/{id} [delete]
func (h *APIHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, refError{Error: "invalid id"})
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, refMessage{Message: "Annotation deleted successfully"})
}
