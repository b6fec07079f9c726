package service

import (
	"context"
	"fmt"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/optimistic"
)

var ErrInvalidLevel = fmt.Errorf("invalid level: must be %d-%d", models.MinLightLevel, models.MaxLightLevel)

func mergeLight(local *models.Light, s models.LightSnapshot) { s.ApplyTo(local) }

var (
	lightActive = optimistic.Attribute[models.Light, models.LightSnapshot, bool]{
		Name:  "is_active",
		Get:   func(l models.Light) bool { return l.IsActive },
		Set:   func(l *models.Light, v bool) { l.IsActive = v },
		Merge: mergeLight,
	}
	lightLevel = optimistic.Attribute[models.Light, models.LightSnapshot, int]{
		Name:  "level",
		Get:   func(l models.Light) int { return l.Level },
		Set:   func(l *models.Light, v int) { l.Level = v },
		Merge: mergeLight,
	}
)

// LevelResult reports a level change and, when one was needed, the follow-up activation.
type LevelResult struct {
	Level    optimistic.Result
	Activate *optimistic.Result
}

type LightService struct {
	api  *api.Client
	ctrl *optimistic.Controller[models.Light]
	log  *logger.Logger
}

func NewLightService(client *api.Client, log *logger.Logger, opts ...optimistic.Option) *LightService {
	return &LightService{
		api:  client,
		ctrl: optimistic.NewController("light", optimistic.NewStore[models.Light](), opts...),
		log:  logger.OrNop(log),
	}
}

func (s *LightService) Controller() *optimistic.Controller[models.Light] { return s.ctrl }

func (s *LightService) Load(ctx context.Context) ([]models.Light, error) {
	lights, err := s.api.Lights(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lights: %w", err)
	}
	for _, l := range lights {
		s.ctrl.ApplyIfIdle(l.ID, l)
	}
	return s.ctrl.Store().List(), nil
}

func (s *LightService) Light(id int) (models.Light, bool) { return s.ctrl.Store().Get(id) }

func (s *LightService) Pending(id int, attribute string) bool { return s.ctrl.InFlight(id, attribute) }

// Toggle flips is_active through the stateless toggle endpoint. A toggle
// issued while another is in flight is rejected, so the server never sees
// two flips for one intended change.
func (s *LightService) Toggle(ctx context.Context, id int) optimistic.Result {
	l, ok := s.Light(id)
	if !ok {
		return optimistic.Result{Outcome: optimistic.Rejected, Err: optimistic.ErrUnknownEntity}
	}
	toggle := func(ctx context.Context, id int, _ bool) (models.LightSnapshot, error) {
		return s.api.ToggleLight(ctx, id)
	}
	return optimistic.Mutate(ctx, s.ctrl, id, lightActive, !l.IsActive, toggle)
}

func (s *LightService) SetActive(ctx context.Context, id int, active bool) optimistic.Result {
	return optimistic.Mutate(ctx, s.ctrl, id, lightActive, active, s.api.SetLightActive)
}

// SetLevel changes brightness. When the change is confirmed and the light is
// still inactive, a second, independent mutation activates it. A failed
// activation does not undo the level.
func (s *LightService) SetLevel(ctx context.Context, id int, level int) LevelResult {
	if level < models.MinLightLevel || level > models.MaxLightLevel {
		return LevelResult{Level: optimistic.Result{Outcome: optimistic.Rejected, Err: ErrInvalidLevel}}
	}

	res := LevelResult{Level: optimistic.Mutate(ctx, s.ctrl, id, lightLevel, level, s.api.SetLightLevel)}
	if !res.Level.Confirmed() {
		return res
	}

	l, ok := s.Light(id)
	if !ok || l.IsActive || l.Level <= 0 {
		return res
	}
	activate := s.SetActive(ctx, id, true)
	if !activate.Confirmed() {
		s.log.Infow("light_activate_followup_failed", "entity_id", id, "outcome", activate.Outcome.String(), "err", activate.Err)
	}
	res.Activate = &activate
	return res
}
