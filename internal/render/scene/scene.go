// Package scene is a retained, in-memory render.Provider. The session service
// serves its snapshot to the browser, which draws it, and feeds geometry-handle
// edits back through SetPath.
package scene

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render"
)

var (
	ErrUnknownObject = errors.New("scene: unknown object")
	ErrNotEditable   = errors.New("scene: object is not editable")
)

type ObjectKind string

const (
	KindMarker   ObjectKind = "marker"
	KindPolyline ObjectKind = "polyline"
	KindPolygon  ObjectKind = "polygon"
)

type object struct {
	id        string
	seq       uint64
	kind      ObjectKind
	position  entity.LatLng
	path      []entity.LatLng
	style     render.Style
	glyph     render.Glyph
	editable  bool
	draggable bool
	attached  bool

	listeners    map[int]func()
	nextListener int
}

// View is the JSON form of a live object.
type View struct {
	ID        string          `json:"id"`
	Kind      ObjectKind      `json:"kind"`
	Position  *entity.LatLng  `json:"position,omitempty"`
	Path      []entity.LatLng `json:"path,omitempty"`
	Style     *render.Style   `json:"style,omitempty"`
	Glyph     *render.Glyph   `json:"glyph,omitempty"`
	Editable  bool            `json:"editable,omitempty"`
	Draggable bool            `json:"draggable,omitempty"`
}

type Scene struct {
	mu       sync.Mutex
	objects  map[string]*object
	seq      uint64
	created  int
	disposed int
}

func New() *Scene {
	return &Scene{objects: make(map[string]*object)}
}

var _ render.Provider = (*Scene)(nil)

func (s *Scene) add(o *object) {
	s.mu.Lock()
	s.seq++
	o.id = uuid.NewString()
	o.seq = s.seq
	o.attached = true
	o.listeners = make(map[int]func())
	s.objects[o.id] = o
	s.created++
	s.mu.Unlock()
}

func (s *Scene) NewMarker(pos entity.LatLng, g render.Glyph) (render.Marker, error) {
	o := &object{kind: KindMarker, position: pos, glyph: g}
	s.add(o)
	return &markerHandle{s: s, o: o}, nil
}

func (s *Scene) NewPolyline(path []entity.LatLng, st render.Style) (render.Shape, error) {
	o := &object{kind: KindPolyline, path: clonePath(path), style: st}
	s.add(o)
	return &shapeHandle{s: s, o: o}, nil
}

func (s *Scene) NewPolygon(ring []entity.LatLng, st render.Style) (render.Shape, error) {
	o := &object{kind: KindPolygon, path: clonePath(ring), style: st}
	s.add(o)
	return &shapeHandle{s: s, o: o}, nil
}

func (s *Scene) detach(o *object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !o.attached {
		return
	}
	o.attached = false
	o.listeners = nil
	delete(s.objects, o.id)
	s.disposed++
}

// SetPath replaces the geometry of an editable shape, as a drag handle would,
// and notifies its path-changed listeners.
func (s *Scene) SetPath(id string, path []entity.LatLng) error {
	s.mu.Lock()
	o, ok := s.objects[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownObject
	}
	if o.kind == KindMarker || !o.editable {
		s.mu.Unlock()
		return ErrNotEditable
	}
	o.path = clonePath(path)
	fns := make([]func(), 0, len(o.listeners))
	keys := make([]int, 0, len(o.listeners))
	for k := range o.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fns = append(fns, o.listeners[k])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (s *Scene) Snapshot() []View {
	s.mu.Lock()
	objs := make([]*object, 0, len(s.objects))
	for _, o := range s.objects {
		objs = append(objs, o)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].seq < objs[j].seq })
	views := make([]View, 0, len(objs))
	for _, o := range objs {
		views = append(views, o.view())
	}
	s.mu.Unlock()
	return views
}

func (s *Scene) Object(id string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return View{}, false
	}
	return o.view(), true
}

// Live is the number of attached objects.
func (s *Scene) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Scene) Count(kind ObjectKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

// Stats returns how many objects were ever created and disposed.
func (s *Scene) Stats() (created, disposed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, s.disposed
}

func (o *object) view() View {
	v := View{ID: o.id, Kind: o.kind, Editable: o.editable, Draggable: o.draggable}
	if o.kind == KindMarker {
		pos := o.position
		g := o.glyph
		v.Position = &pos
		v.Glyph = &g
	} else {
		st := o.style
		v.Path = clonePath(o.path)
		v.Style = &st
	}
	return v
}

func clonePath(p []entity.LatLng) []entity.LatLng {
	return append([]entity.LatLng(nil), p...)
}
