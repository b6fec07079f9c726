package reconcile

import (
	"sort"
	"sync"

	"smarthome_sync/internal/models"
)

// Editor holds one equipment edit session for an automation: the snapshot
// loaded when the editor opened and the selection the user is building.
type Editor struct {
	ownerID int

	mu       sync.Mutex
	snapshot []models.Association
	selected map[models.TargetKey]models.ActionMeta
}

// NewEditor starts an edit session with the selection equal to loaded.
func NewEditor(ownerID int, loaded []models.Association) *Editor {
	e := &Editor{
		ownerID:  ownerID,
		snapshot: append([]models.Association(nil), loaded...),
		selected: make(map[models.TargetKey]models.ActionMeta, len(loaded)),
	}
	for _, a := range loaded {
		if _, ok := e.selected[a.Key()]; !ok {
			e.selected[a.Key()] = a.Action
		}
	}
	return e
}

func (e *Editor) OwnerID() int { return e.ownerID }

// Toggle flips membership of key and reports whether it is now selected.
func (e *Editor) Toggle(key models.TargetKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.selected[key]; ok {
		delete(e.selected, key)
		return false
	}
	e.selected[key] = nil
	return true
}

// Select adds t to the selection, replacing the action of an existing member.
func (e *Editor) Select(t models.Target) {
	e.mu.Lock()
	e.selected[t.TargetKey] = t.Action
	e.mu.Unlock()
}

func (e *Editor) Deselect(key models.TargetKey) {
	e.mu.Lock()
	delete(e.selected, key)
	e.mu.Unlock()
}

func (e *Editor) Selected(key models.TargetKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.selected[key]
	return ok
}

// Desired returns the current selection ordered by target.
func (e *Editor) Desired() []models.Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desiredLocked()
}

func (e *Editor) desiredLocked() []models.Target {
	out := make([]models.Target, 0, len(e.selected))
	for k, action := range e.selected {
		out = append(out, models.Target{TargetKey: k, Action: action})
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].TargetKey, out[j].TargetKey) })
	return out
}

// Snapshot returns the associations currently believed to exist server-side.
func (e *Editor) Snapshot() []models.Association {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Association(nil), e.snapshot...)
}

// Diff reconciles the snapshot against the selection.
func (e *Editor) Diff() Diff {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Reconcile(e.snapshot, e.desiredLocked())
}

// HasChanges gates the discard-confirmation prompt.
func (e *Editor) HasChanges() bool {
	return !e.Diff().Empty()
}

// Commit folds the successful operations of res into the snapshot. Failed
// operations stay pending, so the next Diff re-issues only those.
func (e *Editor) Commit(res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := make(map[int]bool, len(res.Removed))
	for _, a := range res.Removed {
		removed[a.ID] = true
	}
	next := e.snapshot[:0:0]
	for _, a := range e.snapshot {
		if !removed[a.ID] {
			next = append(next, a)
		}
	}
	e.snapshot = append(next, res.Added...)
}
