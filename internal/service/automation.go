package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/reconcile"
	"smarthome_sync/internal/schedule"
)

type AutomationService struct {
	api     *api.Client
	applier *reconcile.Applier
	log     *logger.Logger

	mu    sync.RWMutex
	items map[int]models.Automation
}

func NewAutomationService(client *api.Client, applier *reconcile.Applier, log *logger.Logger) *AutomationService {
	return &AutomationService{
		api:     client,
		applier: applier,
		log:     logger.OrNop(log),
		items:   make(map[int]models.Automation),
	}
}

func (s *AutomationService) Load(ctx context.Context) ([]models.Automation, error) {
	list, err := s.api.Automations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load automations: %w", err)
	}
	s.mu.Lock()
	s.items = make(map[int]models.Automation, len(list))
	for _, a := range list {
		s.items[a.ID] = a
	}
	s.mu.Unlock()
	return list, nil
}

func (s *AutomationService) Automation(id int) (models.Automation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	return a, ok
}

func (s *AutomationService) put(a models.Automation) {
	s.mu.Lock()
	s.items[a.ID] = a
	s.mu.Unlock()
}

func (s *AutomationService) Create(ctx context.Context, name string, spec schedule.Spec) (models.Automation, error) {
	if err := spec.Validate(); err != nil {
		return models.Automation{}, err
	}
	a, err := s.api.CreateAutomation(ctx, name, schedule.Encode(spec.Normalize()))
	if err != nil {
		return models.Automation{}, fmt.Errorf("create automation: %w", err)
	}
	s.put(a)
	return a, nil
}

// OpenSchedule decodes the stored schedule for editing. An automation
// without a schedule starts as a daily one at midnight.
func (s *AutomationService) OpenSchedule(id int) (schedule.Spec, error) {
	a, ok := s.Automation(id)
	if !ok {
		return schedule.Spec{}, fmt.Errorf("automation %d: not loaded", id)
	}
	if a.Schedule == "" {
		return schedule.Spec{Frequency: schedule.Daily}, nil
	}
	return schedule.Decode(a.Schedule)
}

// SaveSchedule validates spec, encodes it and persists it as the automation's schedule.
func (s *AutomationService) SaveSchedule(ctx context.Context, id int, spec schedule.Spec) (models.Automation, error) {
	if err := spec.Validate(); err != nil {
		return models.Automation{}, err
	}
	expr := schedule.Encode(spec.Normalize())
	a, err := s.api.UpdateSchedule(ctx, id, expr)
	if err != nil {
		return models.Automation{}, fmt.Errorf("save schedule: %w", err)
	}
	s.put(a)
	s.log.Infow("schedule_saved", "automation_id", id, "schedule", expr)
	return a, nil
}

func (s *AutomationService) NextRun(id int, after time.Time) (time.Time, error) {
	a, ok := s.Automation(id)
	if !ok {
		return time.Time{}, fmt.Errorf("automation %d: not loaded", id)
	}
	return schedule.NextRun(a.Schedule, after)
}

// OpenEquipmentEditor loads the automation's associations as the edit snapshot.
func (s *AutomationService) OpenEquipmentEditor(ctx context.Context, id int) (*reconcile.Editor, error) {
	loaded, err := s.api.Equipment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}
	return reconcile.NewEditor(id, loaded), nil
}

// SaveEquipment applies the editor's pending changes once. Successful
// operations are folded into the editor's snapshot; the returned error is a
// *reconcile.PartialFailureError listing the ones that failed.
func (s *AutomationService) SaveEquipment(ctx context.Context, e *reconcile.Editor) (reconcile.Result, error) {
	diff := e.Diff()
	if diff.Empty() {
		return reconcile.Result{}, nil
	}
	owner := e.OwnerID()
	create := func(ctx context.Context, t models.Target) (models.Association, error) {
		return s.api.CreateAssociation(ctx, owner, t)
	}
	res := s.applier.Apply(ctx, diff, create, s.api.DeleteAssociation)
	e.Commit(res)
	return res, res.Err()
}
