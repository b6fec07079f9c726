package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"smarthome_sync/internal/models"
	"smarthome_sync/internal/schedule"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidValue = errors.New("invalid value")
)

// Change is one authoritative update pushed to websocket subscribers.
type Change struct {
	Type string `json:"type"` // device | light
	Data any    `json:"data"`
}

// Home is the simulator's in-memory authoritative state.
type Home struct {
	mu           sync.Mutex
	devices      map[int]models.Device
	lights       map[int]models.Light
	automations  map[int]models.Automation
	associations map[int]models.Association
	nextAutoID   int
	nextAssocID  int

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

func NewHome() *Home {
	return &Home{
		devices:      make(map[int]models.Device),
		lights:       make(map[int]models.Light),
		automations:  make(map[int]models.Automation),
		associations: make(map[int]models.Association),
		nextAutoID:   1,
		nextAssocID:  1,
		subs:         make(map[int]chan Change),
	}
}

// Seed fills the home with a small fixture: two air-conditioners, three
// lights and one automation controlling the first light.
func (h *Home) Seed() *Home {
	h.PutDevice(models.Device{ID: 1, Name: "Living room AC", RoomID: 1, Mode: models.ModeCool, Temperature: 24, FanSpeed: 2, MinTemp: 16, MaxTemp: 30})
	h.PutDevice(models.Device{ID: 2, Name: "Bedroom AC", RoomID: 2, Mode: models.ModeHeat, Temperature: 21, MinTemp: 16, MaxTemp: 30})
	h.PutLight(models.Light{ID: 1, Name: "Ceiling", RoomID: 1, Level: 80})
	h.PutLight(models.Light{ID: 2, Name: "Desk", RoomID: 1, IsActive: true, Level: 40})
	h.PutLight(models.Light{ID: 3, Name: "Bedside", RoomID: 2, Level: 10})
	a, _ := h.CreateAutomation("Evening", "0 0 18 * * ?")
	_, _ = h.CreateAssociation(a.ID, models.Target{TargetKey: models.TargetKey{Type: models.TargetLight, ID: 1}, Action: models.ActionMeta{"is_active": true}})
	return h
}

func (h *Home) PutDevice(d models.Device) {
	h.mu.Lock()
	h.devices[d.ID] = d
	h.mu.Unlock()
}

func (h *Home) PutLight(l models.Light) {
	h.mu.Lock()
	h.lights[l.ID] = l
	h.mu.Unlock()
}

func (h *Home) Devices() []models.Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Device, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Home) Device(id int) (models.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.devices[id]
	if !ok {
		return models.Device{}, fmt.Errorf("device %d: %w", id, ErrNotFound)
	}
	return d, nil
}

// UpdateDevice applies fn to device id and publishes the result.
func (h *Home) UpdateDevice(id int, fn func(*models.Device) error) (models.Device, error) {
	h.mu.Lock()
	d, ok := h.devices[id]
	if !ok {
		h.mu.Unlock()
		return models.Device{}, fmt.Errorf("device %d: %w", id, ErrNotFound)
	}
	if err := fn(&d); err != nil {
		h.mu.Unlock()
		return models.Device{}, err
	}
	h.devices[id] = d
	h.mu.Unlock()

	h.publish(Change{Type: "device", Data: d})
	return d, nil
}

func (h *Home) Lights() []models.Light {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Light, 0, len(h.lights))
	for _, l := range h.lights {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Home) Light(id int) (models.Light, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.lights[id]
	if !ok {
		return models.Light{}, fmt.Errorf("light %d: %w", id, ErrNotFound)
	}
	return l, nil
}

func (h *Home) UpdateLight(id int, fn func(*models.Light) error) (models.Light, error) {
	h.mu.Lock()
	l, ok := h.lights[id]
	if !ok {
		h.mu.Unlock()
		return models.Light{}, fmt.Errorf("light %d: %w", id, ErrNotFound)
	}
	if err := fn(&l); err != nil {
		h.mu.Unlock()
		return models.Light{}, err
	}
	h.lights[id] = l
	h.mu.Unlock()

	h.publish(Change{Type: "light", Data: l})
	return l, nil
}

func (h *Home) Automations() []models.Automation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Automation, 0, len(h.automations))
	for _, a := range h.automations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateAutomation stores a new enabled automation. The schedule must decode.
func (h *Home) CreateAutomation(name, expr string) (models.Automation, error) {
	if _, err := schedule.Decode(expr); err != nil {
		return models.Automation{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	a := models.Automation{ID: h.nextAutoID, Name: name, Schedule: expr, Enabled: true}
	h.nextAutoID++
	h.automations[a.ID] = a
	return a, nil
}

func (h *Home) SetSchedule(id int, expr string) (models.Automation, error) {
	if _, err := schedule.Decode(expr); err != nil {
		return models.Automation{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.automations[id]
	if !ok {
		return models.Automation{}, fmt.Errorf("automation %d: %w", id, ErrNotFound)
	}
	a.Schedule = expr
	h.automations[id] = a
	return a, nil
}

// Equipment lists the associations of an automation ordered by id.
func (h *Home) Equipment(ownerID int) ([]models.Association, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.automations[ownerID]; !ok {
		return nil, fmt.Errorf("automation %d: %w", ownerID, ErrNotFound)
	}
	out := []models.Association{}
	for _, a := range h.associations {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAssociation enforces one association per (owner, target).
func (h *Home) CreateAssociation(ownerID int, t models.Target) (models.Association, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.automations[ownerID]; !ok {
		return models.Association{}, fmt.Errorf("automation %d: %w", ownerID, ErrNotFound)
	}
	if !h.targetExistsLocked(t.TargetKey) {
		return models.Association{}, fmt.Errorf("%s %d: %w", t.Type, t.ID, ErrNotFound)
	}
	for _, a := range h.associations {
		if a.OwnerID == ownerID && a.Key() == t.TargetKey {
			return models.Association{}, fmt.Errorf("automation %d already controls %s %d: %w", ownerID, t.Type, t.ID, ErrConflict)
		}
	}
	a := models.Association{ID: h.nextAssocID, OwnerID: ownerID, TargetKey: t.TargetKey, Action: t.Action}
	h.nextAssocID++
	h.associations[a.ID] = a
	return a, nil
}

func (h *Home) DeleteAssociation(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.associations[id]; !ok {
		return fmt.Errorf("association %d: %w", id, ErrNotFound)
	}
	delete(h.associations, id)
	return nil
}

func (h *Home) targetExistsLocked(k models.TargetKey) bool {
	switch k.Type {
	case models.TargetDevice:
		_, ok := h.devices[k.ID]
		return ok
	case models.TargetLight:
		_, ok := h.lights[k.ID]
		return ok
	}
	return false
}

// Subscribe returns a channel of state changes. Slow subscribers miss changes.
func (h *Home) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subs, id)
			h.subMu.Unlock()
			close(ch)
		})
	}
}

func (h *Home) publish(c Change) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
