// Package reconcile turns free-form membership edits of an automation's
// equipment into the minimal set of create and delete calls.
package reconcile

import (
	"sort"

	"smarthome_sync/internal/models"
)

// Diff is the minimal change set between a loaded snapshot and a desired selection.
type Diff struct {
	ToAdd    []models.Target
	ToRemove []models.Association
}

// Empty reports whether applying the diff would issue no calls.
func (d Diff) Empty() bool { return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 }

// Reconcile computes desired − original as additions and original − desired
// as removals, keyed by (target type, target id). Members present in both
// sets produce nothing even if their action differs.
//
// If original holds more than one association for a key, the extras are
// scheduled for removal so the owner ends up with at most one.
func Reconcile(original []models.Association, desired []models.Target) Diff {
	want := make(map[models.TargetKey]models.Target, len(desired))
	for _, t := range desired {
		if _, dup := want[t.TargetKey]; !dup {
			want[t.TargetKey] = t
		}
	}

	var d Diff
	kept := make(map[models.TargetKey]bool, len(original))
	for _, a := range original {
		k := a.Key()
		if _, ok := want[k]; ok && !kept[k] {
			kept[k] = true
			continue
		}
		d.ToRemove = append(d.ToRemove, a)
	}
	for k, t := range want {
		if !kept[k] {
			d.ToAdd = append(d.ToAdd, t)
		}
	}

	sort.Slice(d.ToAdd, func(i, j int) bool { return keyLess(d.ToAdd[i].TargetKey, d.ToAdd[j].TargetKey) })
	sort.SliceStable(d.ToRemove, func(i, j int) bool { return keyLess(d.ToRemove[i].Key(), d.ToRemove[j].Key()) })
	return d
}

// HasChanges reports whether saving desired over original would issue any call.
func HasChanges(original []models.Association, desired []models.Target) bool {
	return !Reconcile(original, desired).Empty()
}

func keyLess(a, b models.TargetKey) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}
