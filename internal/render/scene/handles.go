package scene

import (
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/render"
)

type markerHandle struct {
	s *Scene
	o *object
}

func (h *markerHandle) ID() string { return h.o.id }

func (h *markerHandle) Attached() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.o.attached
}

func (h *markerHandle) Detach() error {
	h.s.detach(h.o)
	return nil
}

func (h *markerHandle) Position() (entity.LatLng, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if !h.o.attached {
		return entity.LatLng{}, render.ErrDisposed
	}
	return h.o.position, nil
}

func (h *markerHandle) SetPosition(p entity.LatLng) error {
	return h.update(func(o *object) { o.position = p })
}

func (h *markerHandle) SetGlyph(g render.Glyph) error {
	return h.update(func(o *object) { o.glyph = g })
}

func (h *markerHandle) SetDraggable(v bool) error {
	return h.update(func(o *object) { o.draggable = v })
}

func (h *markerHandle) update(fn func(*object)) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if !h.o.attached {
		return render.ErrDisposed
	}
	fn(h.o)
	return nil
}

type shapeHandle struct {
	s *Scene
	o *object
}

func (h *shapeHandle) ID() string { return h.o.id }

func (h *shapeHandle) Attached() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.o.attached
}

func (h *shapeHandle) Detach() error {
	h.s.detach(h.o)
	return nil
}

func (h *shapeHandle) Path() ([]entity.LatLng, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if !h.o.attached {
		return nil, render.ErrDisposed
	}
	return clonePath(h.o.path), nil
}

func (h *shapeHandle) SetStyle(st render.Style) error {
	return h.update(func(o *object) { o.style = st })
}

func (h *shapeHandle) SetEditable(v bool) error {
	return h.update(func(o *object) { o.editable = v })
}

func (h *shapeHandle) OnPathChanged(fn func()) func() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if !h.o.attached {
		return func() {}
	}
	key := h.o.nextListener
	h.o.nextListener++
	h.o.listeners[key] = fn
	return func() {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
		delete(h.o.listeners, key)
	}
}

func (h *shapeHandle) update(fn func(*object)) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if !h.o.attached {
		return render.ErrDisposed
	}
	fn(h.o)
	return nil
}
