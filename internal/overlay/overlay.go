// Package overlay binds an annotation kind to its rendered handle. Overlay is a
// closed set: *Pin, *Line and *Polygon.
package overlay

import (
	"fmt"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render"
)

type Overlay interface {
	Kind() entity.Kind
	Handle() render.Handle
	Dispose() error
	isOverlay()
}

// Editable overlays expose a shape whose geometry can be dragged.
type Editable interface {
	Overlay
	Shape() render.Shape
}

type Pin struct{ Marker render.Marker }

type Line struct{ Path render.Shape }

type Polygon struct{ Ring render.Shape }

func (*Pin) Kind() entity.Kind     { return entity.KindPin }
func (*Line) Kind() entity.Kind    { return entity.KindLine }
func (*Polygon) Kind() entity.Kind { return entity.KindPolygon }

func (o *Pin) Handle() render.Handle     { return o.Marker }
func (o *Line) Handle() render.Handle    { return o.Path }
func (o *Polygon) Handle() render.Handle { return o.Ring }

func (o *Pin) Dispose() error     { return o.Marker.Detach() }
func (o *Line) Dispose() error    { return o.Path.Detach() }
func (o *Polygon) Dispose() error { return o.Ring.Detach() }

func (o *Line) Shape() render.Shape    { return o.Path }
func (o *Polygon) Shape() render.Shape { return o.Ring }

func (*Pin) isOverlay()     {}
func (*Line) isOverlay()    {}
func (*Polygon) isOverlay() {}

// Build draws a fresh, non-editable overlay for a.
func Build(p render.Provider, a entity.Annotation) (Overlay, error) {
	if err := entity.ValidateGeometry(a.Kind, a.Geometry); err != nil {
		return nil, err
	}
	switch a.Kind {
	case entity.KindPin:
		m, err := p.NewMarker(a.Geometry[0], PinGlyph(a.Style, a.Name))
		if err != nil {
			return nil, err
		}
		return &Pin{Marker: m}, nil
	case entity.KindLine:
		s, err := p.NewPolyline(a.Geometry, ShapeStyle(entity.KindLine, a.Style))
		if err != nil {
			return nil, err
		}
		return &Line{Path: s}, nil
	case entity.KindPolygon:
		s, err := p.NewPolygon(entity.OpenRing(a.Geometry), ShapeStyle(entity.KindPolygon, a.Style))
		if err != nil {
			return nil, err
		}
		return &Polygon{Ring: s}, nil
	}
	return nil, fmt.Errorf("unknown annotation type %q", a.Kind)
}

// PinGlyph is the circle a pin renders as.
func PinGlyph(st entity.StyleOptions, title string) render.Glyph {
	st = st.WithDefaults()
	return render.Glyph{
		Shape:        "circle",
		FillColor:    st.FillColor,
		StrokeColor:  "#FFFFFF",
		StrokeWeight: 2,
		Scale:        8,
		Title:        title,
	}
}

// ShapeStyle is the render style of a line or polygon. Lines carry no fill.
func ShapeStyle(k entity.Kind, st entity.StyleOptions) render.Style {
	st = st.WithDefaults()
	rs := render.Style{
		StrokeColor:   st.StrokeColor,
		StrokeOpacity: st.StrokeOpacity,
		StrokeWeight:  st.StrokeWeight,
	}
	if k == entity.KindPolygon {
		rs.FillColor = st.FillColor
		rs.FillOpacity = st.FillOpacity
	}
	return rs
}

// Geometry reads the live geometry from the overlay.
func Geometry(o Overlay) ([]entity.LatLng, error) {
	switch v := o.(type) {
	case *Pin:
		p, err := v.Marker.Position()
		if err != nil {
			return nil, err
		}
		return []entity.LatLng{p}, nil
	case *Line:
		return v.Path.Path()
	case *Polygon:
		return v.Ring.Path()
	}
	return nil, fmt.Errorf("unknown overlay %T", o)
}

// RepresentativePosition is where a connection line attaches: the pin position,
// the middle vertex of a line, the vertex centroid of a polygon ring. ok is
// false for an unknown or disposed overlay and for empty geometry.
func RepresentativePosition(o Overlay) (entity.LatLng, bool) {
	switch v := o.(type) {
	case *Pin:
		if v == nil || v.Marker == nil {
			return entity.LatLng{}, false
		}
		p, err := v.Marker.Position()
		return p, err == nil
	case *Line:
		if v == nil || v.Path == nil {
			return entity.LatLng{}, false
		}
		path, err := v.Path.Path()
		if err != nil || len(path) == 0 {
			return entity.LatLng{}, false
		}
		return path[len(path)/2], true
	case *Polygon:
		if v == nil || v.Ring == nil {
			return entity.LatLng{}, false
		}
		ring, err := v.Ring.Path()
		if err != nil {
			return entity.LatLng{}, false
		}
		return Centroid(ring)
	}
	return entity.LatLng{}, false
}

// Centroid averages the ring vertices, ignoring a closing duplicate.
func Centroid(ring []entity.LatLng) (entity.LatLng, bool) {
	ring = entity.OpenRing(ring)
	if len(ring) == 0 {
		return entity.LatLng{}, false
	}
	var c entity.LatLng
	for _, p := range ring {
		c.Lat += p.Lat
		c.Lng += p.Lng
	}
	n := float64(len(ring))
	return entity.LatLng{Lat: c.Lat / n, Lng: c.Lng / n}, true
}
