package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPin     Kind = "pin"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPin, KindLine, KindPolygon:
		return k, nil
	default:
		return "", fmt.Errorf("unknown annotation type %q", s)
	}
}

// Title returns the capitalized kind ("Pin", "Line", "Polygon") for user-facing messages.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

const (
	DefaultColor         = "#FF0000"
	DefaultFillOpacity   = 0.35
	DefaultStrokeOpacity = 1.0
	DefaultStrokeWeight  = 2.0
)

// StyleOptions mirrors the style_options column. Zero values mean "use the default".
type StyleOptions struct {
	FillColor     string  `json:"fillColor,omitempty"`
	FillOpacity   float64 `json:"fillOpacity,omitempty"`
	StrokeColor   string  `json:"strokeColor,omitempty"`
	StrokeOpacity float64 `json:"strokeOpacity,omitempty"`
	StrokeWeight  float64 `json:"strokeWeight,omitempty"`
}

// WithDefaults fills every unset field.
func (s StyleOptions) WithDefaults() StyleOptions {
	if s.FillColor == "" {
		s.FillColor = DefaultColor
	}
	if s.FillOpacity == 0 {
		s.FillOpacity = DefaultFillOpacity
	}
	if s.StrokeColor == "" {
		s.StrokeColor = DefaultColor
	}
	if s.StrokeOpacity == 0 {
		s.StrokeOpacity = DefaultStrokeOpacity
	}
	if s.StrokeWeight == 0 {
		s.StrokeWeight = DefaultStrokeWeight
	}
	return s
}

// PrimaryColor is the color shown in the edit dialog: fill first, then stroke.
func (s StyleOptions) PrimaryColor() string {
	if s.FillColor != "" {
		return s.FillColor
	}
	if s.StrokeColor != "" {
		return s.StrokeColor
	}
	return DefaultColor
}

// WithColor places a single dialog color where the kind renders it:
// polygons use it for fill and stroke, lines for stroke, pins for fill.
func (s StyleOptions) WithColor(k Kind, color string) StyleOptions {
	switch k {
	case KindPolygon:
		s.FillColor = color
		s.StrokeColor = color
	case KindLine:
		s.StrokeColor = color
	case KindPin:
		s.FillColor = color
	}
	return s
}

type Annotation struct {
	ID          int64        `json:"id"`
	JobID       int64        `json:"jobId"`
	Kind        Kind         `json:"annotationType"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Geometry    []LatLng     `json:"coordinates"`
	Style       StyleOptions `json:"styleOptions"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

// Persisted reports whether the server has assigned an id.
func (a Annotation) Persisted() bool { return a.ID != 0 }

// Draft is an annotation that exists only on the client until the create call returns.
type Draft struct {
	DraftID     uuid.UUID
	Kind        Kind
	Name        string
	Description string
	Geometry    []LatLng
	Style       StyleOptions
}

func NewDraft(kind Kind, geometry []LatLng, style StyleOptions) Draft {
	return Draft{
		DraftID:  uuid.New(),
		Kind:     kind,
		Geometry: append([]LatLng(nil), geometry...),
		Style:    style,
	}
}

// Annotation returns the unsaved annotation used to draw the provisional overlay.
func (d Draft) Annotation(jobID int64) Annotation {
	return Annotation{
		JobID:       jobID,
		Kind:        d.Kind,
		Name:        d.Name,
		Description: d.Description,
		Geometry:    d.Geometry,
		Style:       d.Style,
	}
}

// ValidateGeometry checks the point count for the kind.
// A polygon ring may repeat its first point at the end; the duplicate does not count.
func ValidateGeometry(k Kind, pts []LatLng) error {
	switch k {
	case KindPin:
		if len(pts) != 1 {
			return fmt.Errorf("pin needs exactly 1 point, got %d", len(pts))
		}
	case KindLine:
		if len(pts) < 2 {
			return fmt.Errorf("line needs at least 2 points, got %d", len(pts))
		}
	case KindPolygon:
		if n := len(OpenRing(pts)); n < 3 {
			return fmt.Errorf("polygon needs at least 3 distinct ring points, got %d", n)
		}
	default:
		return fmt.Errorf("unknown annotation type %q", k)
	}
	return nil
}

// OpenRing drops a closing point equal to the first one.
func OpenRing(pts []LatLng) []LatLng {
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		return pts[:n-1]
	}
	return pts
}
