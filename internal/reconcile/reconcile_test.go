package reconcile

import (
	"testing"

	"smarthome_sync/internal/models"

	"github.com/stretchr/testify/assert"
)

func light(id int) models.TargetKey  { return models.TargetKey{Type: models.TargetLight, ID: id} }
func device(id int) models.TargetKey { return models.TargetKey{Type: models.TargetDevice, ID: id} }

func target(k models.TargetKey) models.Target { return models.Target{TargetKey: k} }

func assoc(id int, k models.TargetKey) models.Association {
	return models.Association{ID: id, OwnerID: 1, TargetKey: k}
}

func addKeys(d Diff) []models.TargetKey {
	out := []models.TargetKey{}
	for _, t := range d.ToAdd {
		out = append(out, t.TargetKey)
	}
	return out
}

func removeKeys(d Diff) []models.TargetKey {
	out := []models.TargetKey{}
	for _, a := range d.ToRemove {
		out = append(out, a.Key())
	}
	return out
}

func TestReconcile(t *testing.T) {
	a, b, c := light(1), light(2), device(3)

	tests := []struct {
		name       string
		original   []models.Association
		desired    []models.Target
		wantAdd    []models.TargetKey
		wantRemove []models.TargetKey
	}{
		{"both empty", nil, nil, []models.TargetKey{}, []models.TargetKey{}},
		{"same set", []models.Association{assoc(10, a), assoc(11, b)}, []models.Target{target(b), target(a)}, []models.TargetKey{}, []models.TargetKey{}},
		{"from empty", nil, []models.Target{target(a), target(b)}, []models.TargetKey{a, b}, []models.TargetKey{}},
		{"to empty", []models.Association{assoc(10, a), assoc(11, b)}, nil, []models.TargetKey{}, []models.TargetKey{a, b}},
		{"overlap", []models.Association{assoc(10, a), assoc(11, b)}, []models.Target{target(b), target(c)}, []models.TargetKey{c}, []models.TargetKey{a}},
		{"duplicate desired", nil, []models.Target{target(a), target(a)}, []models.TargetKey{a}, []models.TargetKey{}},
		{"duplicate original", []models.Association{assoc(10, a), assoc(12, a)}, []models.Target{target(a)}, []models.TargetKey{}, []models.TargetKey{a}},
		{"same id different type", []models.Association{assoc(10, light(3))}, []models.Target{target(device(3))}, []models.TargetKey{device(3)}, []models.TargetKey{light(3)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Reconcile(tc.original, tc.desired)
			assert.Equal(t, tc.wantAdd, addKeys(d))
			assert.Equal(t, tc.wantRemove, removeKeys(d))
			assert.Equal(t, len(tc.wantAdd)+len(tc.wantRemove) > 0, HasChanges(tc.original, tc.desired))
		})
	}
}

func TestReconcile_RemovalUsesAssociationID(t *testing.T) {
	d := Reconcile([]models.Association{assoc(42, light(7))}, nil)
	assert.Len(t, d.ToRemove, 1)
	assert.Equal(t, 42, d.ToRemove[0].ID)
	assert.Equal(t, 7, d.ToRemove[0].TargetKey.ID)
}

func TestReconcile_ActionChangeIsNotAChange(t *testing.T) {
	orig := []models.Association{{ID: 1, TargetKey: device(3), Action: models.ActionMeta{"power": true}}}
	want := []models.Target{{TargetKey: device(3), Action: models.ActionMeta{"power": false}}}
	assert.True(t, Reconcile(orig, want).Empty())
}

func TestReconcile_DuplicateOriginalKeepsFirst(t *testing.T) {
	d := Reconcile([]models.Association{assoc(10, light(1)), assoc(12, light(1))}, []models.Target{target(light(1))})
	assert.Len(t, d.ToRemove, 1)
	assert.Equal(t, 12, d.ToRemove[0].ID)
}
