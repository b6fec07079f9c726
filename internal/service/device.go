package service

import (
	"context"
	"errors"
	"fmt"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/optimistic"
)

var (
	ErrInvalidMode     = errors.New("invalid mode: must be COOL, HEAT, DRY, FAN or AUTO")
	ErrInvalidFanSpeed = fmt.Errorf("invalid fan speed: must be %d-%d", models.MinFanSpeed, models.MaxFanSpeed)
)

func mergeDevice(local *models.Device, s models.DeviceSnapshot) { s.ApplyTo(local) }

// Device attributes. Each is mutated independently.
var (
	devicePower = optimistic.Attribute[models.Device, models.DeviceSnapshot, bool]{
		Name:  "power",
		Get:   func(d models.Device) bool { return d.Power },
		Set:   func(d *models.Device, v bool) { d.Power = v },
		Merge: mergeDevice,
	}
	deviceTemperature = optimistic.Attribute[models.Device, models.DeviceSnapshot, int]{
		Name:  "temperature",
		Get:   func(d models.Device) int { return d.Temperature },
		Set:   func(d *models.Device, v int) { d.Temperature = v },
		Merge: mergeDevice,
	}
	deviceMode = optimistic.Attribute[models.Device, models.DeviceSnapshot, models.Mode]{
		Name:  "mode",
		Get:   func(d models.Device) models.Mode { return d.Mode },
		Set:   func(d *models.Device, v models.Mode) { d.Mode = v },
		Merge: mergeDevice,
	}
	deviceFanSpeed = optimistic.Attribute[models.Device, models.DeviceSnapshot, int]{
		Name:  "fan_speed",
		Get:   func(d models.Device) int { return d.FanSpeed },
		Set:   func(d *models.Device, v int) { d.FanSpeed = v },
		Merge: mergeDevice,
	}
	deviceSwing = optimistic.Attribute[models.Device, models.DeviceSnapshot, bool]{
		Name:  "swing",
		Get:   func(d models.Device) bool { return d.Swing },
		Set:   func(d *models.Device, v bool) { d.Swing = v },
		Merge: mergeDevice,
	}
)

type DeviceService struct {
	api  *api.Client
	ctrl *optimistic.Controller[models.Device]
	log  *logger.Logger
}

func NewDeviceService(client *api.Client, log *logger.Logger, opts ...optimistic.Option) *DeviceService {
	return &DeviceService{
		api:  client,
		ctrl: optimistic.NewController("device", optimistic.NewStore[models.Device](), opts...),
		log:  logger.OrNop(log),
	}
}

func (s *DeviceService) Controller() *optimistic.Controller[models.Device] { return s.ctrl }

// Load fetches all devices. Entities with a mutation in flight keep their local value.
func (s *DeviceService) Load(ctx context.Context) ([]models.Device, error) {
	devices, err := s.api.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	for _, d := range devices {
		s.ctrl.ApplyIfIdle(d.ID, d)
	}
	return s.ctrl.Store().List(), nil
}

func (s *DeviceService) Device(id int) (models.Device, bool) { return s.ctrl.Store().Get(id) }

// Pending reports whether the control for (id, attribute) should be disabled.
func (s *DeviceService) Pending(id int, attribute string) bool { return s.ctrl.InFlight(id, attribute) }

func (s *DeviceService) SetPower(ctx context.Context, id int, on bool) optimistic.Result {
	return optimistic.Mutate(ctx, s.ctrl, id, devicePower, on, s.api.SetPower)
}

// SetTemperature clamps celsius to the device's range before sending.
func (s *DeviceService) SetTemperature(ctx context.Context, id int, celsius int) optimistic.Result {
	d, ok := s.Device(id)
	if !ok {
		return optimistic.Result{Outcome: optimistic.Rejected, Err: optimistic.ErrUnknownEntity}
	}
	return optimistic.Mutate(ctx, s.ctrl, id, deviceTemperature, d.ClampTemperature(celsius), s.api.SetTemperature)
}

func (s *DeviceService) SetMode(ctx context.Context, id int, mode models.Mode) optimistic.Result {
	if !mode.Valid() {
		return optimistic.Result{Outcome: optimistic.Rejected, Err: ErrInvalidMode}
	}
	return optimistic.Mutate(ctx, s.ctrl, id, deviceMode, mode, s.api.SetMode)
}

func (s *DeviceService) SetFanSpeed(ctx context.Context, id int, speed int) optimistic.Result {
	if speed < models.MinFanSpeed || speed > models.MaxFanSpeed {
		return optimistic.Result{Outcome: optimistic.Rejected, Err: ErrInvalidFanSpeed}
	}
	return optimistic.Mutate(ctx, s.ctrl, id, deviceFanSpeed, speed, s.api.SetFanSpeed)
}

func (s *DeviceService) SetSwing(ctx context.Context, id int, on bool) optimistic.Result {
	return optimistic.Mutate(ctx, s.ctrl, id, deviceSwing, on, s.api.SetSwing)
}
