// Package editstate tracks which annotations are being edited and which carry unsaved changes.
//
// Every annotation is in one of three states. Absence from the table means clean.
//
//	clean --BeginEdit--> editing --MarkDirty--> dirty --Resolve--> clean
//	                     editing --Cancel/Resolve--> clean
//
// There is no clean -> dirty edge: MarkDirty on a clean annotation is rejected.
//
// Every BeginEdit and MarkDirty also bumps the annotation's revision. A save
// captures the revision with its snapshot and resolves through ResolveIf, so a
// change made while the request was in flight keeps the annotation dirty.
package editstate

import (
	"log/slog"
	"sort"
	"sync"
)

type State uint8

const (
	Clean State = iota
	Editing
	Dirty
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Dirty:
		return "dirty"
	default:
		return "clean"
	}
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	states map[int64]State
	revs   map[int64]uint64
	seq    uint64
	log    *slog.Logger

	// OnChange, when set, receives the dirty count after every mutation.
	OnChange func(dirty int)
}

func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[int64]State),
		revs:   make(map[int64]uint64),
		log:    slog.Default().With("component", "editstate"),
	}
}

func (t *Tracker) BeginEdit(id int64) {
	t.mu.Lock()
	if t.states[id] == Clean {
		t.states[id] = Editing
	}
	t.bumpLocked(id)
	t.mu.Unlock()
}

// MarkDirty moves editing -> dirty. It returns false when the annotation was
// clean: a geometry listener fired outside an editing session.
func (t *Tracker) MarkDirty(id int64) bool {
	t.mu.Lock()
	switch t.states[id] {
	case Clean:
		t.mu.Unlock()
		t.log.Warn("mark dirty rejected: annotation is not being edited", "annotation_id", id)
		return false
	case Editing:
		t.states[id] = Dirty
	}
	t.bumpLocked(id)
	n := t.dirtyLocked()
	t.mu.Unlock()
	t.changed(n)
	return true
}

// Cancel ends an edit that made no change. Dirty annotations are left alone.
func (t *Tracker) Cancel(id int64) {
	t.mu.Lock()
	if t.states[id] == Editing {
		delete(t.states, id)
	}
	t.mu.Unlock()
}

func (t *Tracker) State(id int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[id]
}

// Revision changes whenever the annotation is edited. Zero means it was never
// edited since it was last resolved.
func (t *Tracker) Revision(id int64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revs[id]
}

func (t *Tracker) IsDirty(id int64) bool { return t.State(id) == Dirty }

// DirtyIDs returns the dirty annotation ids in ascending order.
func (t *Tracker) DirtyIDs() []int64 {
	t.mu.Lock()
	ids := make([]int64, 0, len(t.states))
	for id, s := range t.states {
		if s == Dirty {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DirtyAmong returns the members of ids that are dirty, keeping their order.
func (t *Tracker) DirtyAmong(ids []int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if t.states[id] == Dirty {
			out = append(out, id)
		}
	}
	return out
}

// Resolve clears the edit and dirty flags of one annotation (after save or revert).
func (t *Tracker) Resolve(id int64) { t.ResolveMany(id) }

// ResolveIf resolves the annotation only if its revision is still rev. commit,
// when set, runs first under the tracker's lock, so no edit can slip in
// between it and the resolve. It reports whether the annotation was resolved.
func (t *Tracker) ResolveIf(id int64, rev uint64, commit func()) bool {
	t.mu.Lock()
	if t.revs[id] != rev {
		t.mu.Unlock()
		return false
	}
	if commit != nil {
		commit()
	}
	delete(t.states, id)
	delete(t.revs, id)
	n := t.dirtyLocked()
	t.mu.Unlock()
	t.changed(n)
	return true
}

func (t *Tracker) ResolveMany(ids ...int64) {
	t.mu.Lock()
	for _, id := range ids {
		delete(t.states, id)
		delete(t.revs, id)
	}
	n := t.dirtyLocked()
	t.mu.Unlock()
	t.changed(n)
}

// ResolveAll clears the whole table.
func (t *Tracker) ResolveAll() {
	t.mu.Lock()
	t.states = make(map[int64]State)
	t.revs = make(map[int64]uint64)
	t.mu.Unlock()
	t.changed(0)
}

// Prune drops the entries of annotations for which keep returns false.
func (t *Tracker) Prune(keep func(id int64) bool) int {
	t.mu.Lock()
	var dropped []int64
	// every tracked annotation has a revision
	for id := range t.revs {
		if !keep(id) {
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		delete(t.states, id)
		delete(t.revs, id)
	}
	n := t.dirtyLocked()
	t.mu.Unlock()
	if len(dropped) > 0 {
		t.changed(n)
	}
	return len(dropped)
}

func (t *Tracker) bumpLocked(id int64) {
	t.seq++
	t.revs[id] = t.seq
}

func (t *Tracker) dirtyLocked() int {
	n := 0
	for _, s := range t.states {
		if s == Dirty {
			n++
		}
	}
	return n
}

func (t *Tracker) changed(n int) {
	if t.OnChange != nil {
		t.OnChange(n)
	}
}
