package service

import (
	"context"
	"time"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/optimistic"
	"smarthome_sync/internal/reconcile"
	"smarthome_sync/internal/repository"
	"smarthome_sync/internal/schedule"
	"smarthome_sync/internal/session"
)

// Auth owns the credential writes: login and logout.
type Auth interface {
	SignIn(ctx context.Context, creds models.Credentials) error
	SignOut()
	SignedIn() bool
	WatchExpiry(fn func(session.ExpiryEvent)) (cancel func())
}

// Devices exposes optimistic control of air-conditioners.
type Devices interface {
	Load(ctx context.Context) ([]models.Device, error)
	Device(id int) (models.Device, bool)
	Pending(id int, attribute string) bool
	SetPower(ctx context.Context, id int, on bool) optimistic.Result
	SetTemperature(ctx context.Context, id int, celsius int) optimistic.Result
	SetMode(ctx context.Context, id int, mode models.Mode) optimistic.Result
	SetFanSpeed(ctx context.Context, id int, speed int) optimistic.Result
	SetSwing(ctx context.Context, id int, on bool) optimistic.Result
}

// Lights exposes optimistic control of dimmable lights.
type Lights interface {
	Load(ctx context.Context) ([]models.Light, error)
	Light(id int) (models.Light, bool)
	Pending(id int, attribute string) bool
	Toggle(ctx context.Context, id int) optimistic.Result
	SetActive(ctx context.Context, id int, active bool) optimistic.Result
	SetLevel(ctx context.Context, id int, level int) LevelResult
}

// Automations edits schedules and equipment membership.
type Automations interface {
	Load(ctx context.Context) ([]models.Automation, error)
	Automation(id int) (models.Automation, bool)
	Create(ctx context.Context, name string, spec schedule.Spec) (models.Automation, error)
	OpenSchedule(id int) (schedule.Spec, error)
	SaveSchedule(ctx context.Context, id int, spec schedule.Spec) (models.Automation, error)
	NextRun(id int, after time.Time) (time.Time, error)
	OpenEquipmentEditor(ctx context.Context, id int) (*reconcile.Editor, error)
	SaveEquipment(ctx context.Context, e *reconcile.Editor) (reconcile.Result, error)
}

// History reads the mutation journal.
type History interface {
	List(ctx context.Context, f HistoryFilter) ([]models.MutationEvent, error)
}

// Service aggregates the view-model services of one signed-in session.
type Service struct {
	Auth        Auth
	Devices     Devices
	Lights      Lights
	Automations Automations
	History     History

	devices *DeviceService
	lights  *LightService
}

type Options struct {
	ReconcileConcurrency int
	Log                  *logger.Logger
}

// NewService wires the API client and the journal into concrete services.
func NewService(client *api.Client, repos *repository.Repository, opts Options) *Service {
	log := logger.OrNop(opts.Log)
	mutOpts := []optimistic.Option{optimistic.WithLogger(log)}
	if repos != nil && repos.Journal != nil {
		mutOpts = append(mutOpts, optimistic.WithJournal(repos.Journal))
	}

	devices := NewDeviceService(client, log, mutOpts...)
	lights := NewLightService(client, log, mutOpts...)

	svc := &Service{
		Auth:        NewAuthService(client, log),
		Devices:     devices,
		Lights:      lights,
		Automations: NewAutomationService(client, reconcile.NewApplier(opts.ReconcileConcurrency, log), log),
		devices:     devices,
		lights:      lights,
	}
	if repos != nil && repos.Journal != nil {
		svc.History = NewHistoryService(repos.Journal)
	}
	return svc
}

// DeviceController returns the controller backing Devices, for push updates.
func (s *Service) DeviceController() *optimistic.Controller[models.Device] {
	return s.devices.Controller()
}

// LightController returns the controller backing Lights, for push updates.
func (s *Service) LightController() *optimistic.Controller[models.Light] {
	return s.lights.Controller()
}
