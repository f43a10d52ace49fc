package annotationapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"job-annotation-service/internal/entity"
)

// payload is the request body for create and update. The server takes camelCase.
type payload struct {
	AnnotationType entity.Kind         `json:"annotationType"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Coordinates    []entity.LatLng     `json:"coordinates"`
	StyleOptions   entity.StyleOptions `json:"styleOptions"`
}

// wireAnnotation is a row as the server returns it. Rows come back snake_case;
// the camelCase spellings are accepted too.
type wireAnnotation struct {
	ID                  int64                `json:"id"`
	JobID               int64                `json:"job_id"`
	JobIDCamel          int64                `json:"jobId"`
	AnnotationType      string               `json:"annotation_type"`
	AnnotationTypeCamel string               `json:"annotationType"`
	Name                *string              `json:"name"`
	Description         *string              `json:"description"`
	Coordinates         json.RawMessage      `json:"coordinates"`
	StyleOptions        *entity.StyleOptions `json:"style_options"`
	StyleOptionsCamel   *entity.StyleOptions `json:"styleOptions"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

func (w wireAnnotation) normalize() (entity.Annotation, error) {
	kindRaw := w.AnnotationType
	if kindRaw == "" {
		kindRaw = w.AnnotationTypeCamel
	}
	kind, err := entity.ParseKind(kindRaw)
	if err != nil {
		return entity.Annotation{}, err
	}

	coords, err := decodeCoordinates(w.Coordinates)
	if err != nil {
		return entity.Annotation{}, fmt.Errorf("annotation %d: %w", w.ID, err)
	}

	a := entity.Annotation{
		ID:        w.ID,
		JobID:     w.JobID,
		Kind:      kind,
		Geometry:  coords,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if a.JobID == 0 {
		a.JobID = w.JobIDCamel
	}
	if w.Name != nil {
		a.Name = *w.Name
	}
	if w.Description != nil {
		a.Description = *w.Description
	}
	switch {
	case w.StyleOptions != nil:
		a.Style = *w.StyleOptions
	case w.StyleOptionsCamel != nil:
		a.Style = *w.StyleOptionsCamel
	}
	return a, nil
}

// decodeCoordinates accepts a JSON array or a JSON string holding one
// (rows written as text by older servers).
func decodeCoordinates(raw json.RawMessage) ([]entity.LatLng, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode coordinates: %w", err)
		}
		raw = []byte(s)
	}
	var pts []entity.LatLng
	if err := json.Unmarshal(raw, &pts); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}
	return pts, nil
}

type errorBody struct {
	Error string `json:"error"`
}
