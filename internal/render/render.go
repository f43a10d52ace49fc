// Package render is the contract between the engine and whatever draws the map.
package render

import (
	"errors"

	"job-annotation-service/internal/entity"
)

// ErrDisposed is returned by every handle operation after Detach.
var ErrDisposed = errors.New("render: overlay disposed")

type Style struct {
	FillColor     string  `json:"fillColor,omitempty"`
	FillOpacity   float64 `json:"fillOpacity,omitempty"`
	StrokeColor   string  `json:"strokeColor,omitempty"`
	StrokeOpacity float64 `json:"strokeOpacity,omitempty"`
	StrokeWeight  float64 `json:"strokeWeight,omitempty"`
	Dashed        bool    `json:"dashed,omitempty"`
	Geodesic      bool    `json:"geodesic,omitempty"`
	ZIndex        int     `json:"zIndex,omitempty"`
}

// Glyph is the rendered content of a marker. It is replaced as a whole, never patched.
type Glyph struct {
	Shape        string  `json:"shape"`
	Text         string  `json:"text,omitempty"`
	FillColor    string  `json:"fillColor"`
	StrokeColor  string  `json:"strokeColor"`
	StrokeWeight float64 `json:"strokeWeight"`
	Scale        float64 `json:"scale"`
	Title        string  `json:"title,omitempty"`
}

type Handle interface {
	ID() string
	Attached() bool
	// Detach removes the overlay from the surface (setMap(null)). Detaching twice is a no-op.
	Detach() error
}

type Marker interface {
	Handle
	Position() (entity.LatLng, error)
	SetPosition(entity.LatLng) error
	SetGlyph(Glyph) error
	SetDraggable(bool) error
}

// Shape is a polyline or polygon.
type Shape interface {
	Handle
	Path() ([]entity.LatLng, error)
	SetStyle(Style) error
	SetEditable(bool) error
	// OnPathChanged subscribes fn to geometry edits and returns the unsubscribe func.
	OnPathChanged(fn func()) (cancel func())
}

type Provider interface {
	NewMarker(pos entity.LatLng, g Glyph) (Marker, error)
	NewPolyline(path []entity.LatLng, s Style) (Shape, error)
	NewPolygon(ring []entity.LatLng, s Style) (Shape, error)
}
