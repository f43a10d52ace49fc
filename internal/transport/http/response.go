package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/jobmarker"
	"job-annotation-service/internal/prompt"
	"job-annotation-service/internal/render/scene"
	"job-annotation-service/internal/service"
)

type apiError struct {
	Message string `json:"message"`
}

// refError is the error body of the reference annotations API.
type refError struct {
	Error string `json:"error"`
}

type refMessage struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// writeServiceErr maps a controller error to a status. action names the
// failed operation in user messages ("saving annotation").
func writeServiceErr(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, service.ErrCancelled):
		writeErr(w, http.StatusConflict, "cancelled")
	case errors.Is(err, prompt.ErrNoAnswer):
		writeErr(w, http.StatusPreconditionRequired, "an answer is required to continue")
	case errors.Is(err, jobmarker.ErrUnknownJob):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobmarker.ErrNotDraggable), errors.Is(err, jobmarker.ErrNoOrigin):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, scene.ErrUnknownObject):
		writeErr(w, http.StatusNotFound, "overlay not found")
	case errors.Is(err, scene.ErrNotEditable):
		writeErr(w, http.StatusConflict, "overlay is not editable")
	case errors.Is(err, service.ErrPartialSave):
		writeErr(w, http.StatusBadGateway, "Error saving some annotations. Please try again.")
	default:
		writeErr(w, apperr.HTTPStatus(err), apperr.UserMessage(action, err))
	}
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
