package models

// Mode is the operating mode of an air-conditioner.
type Mode string

const (
	ModeCool Mode = "COOL"
	ModeHeat Mode = "HEAT"
	ModeDry  Mode = "DRY"
	ModeFan  Mode = "FAN"
	ModeAuto Mode = "AUTO"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeCool, ModeHeat, ModeDry, ModeFan, ModeAuto:
		return true
	}
	return false
}

// Fan speed bounds; 0 means automatic.
const (
	MinFanSpeed = 0
	MaxFanSpeed = 5
)

// Device is a remotely controlled air-conditioner.
type Device struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	RoomID      int    `json:"room_id,omitempty"`
	Power       bool   `json:"power"`
	Temperature int    `json:"temperature"` // °C
	Mode        Mode   `json:"mode"`        // COOL | HEAT | DRY | FAN | AUTO
	FanSpeed    int    `json:"fan_speed"`   // 0-5
	Swing       bool   `json:"swing"`
	MinTemp     int    `json:"min_temp"` // device-defined range
	MaxTemp     int    `json:"max_temp"`
}

// ClampTemperature bounds t to the device's supported range.
// A device without a range accepts any value.
func (d Device) ClampTemperature(t int) int {
	if d.MinTemp == 0 && d.MaxTemp == 0 {
		return t
	}
	if t < d.MinTemp {
		return d.MinTemp
	}
	if t > d.MaxTemp {
		return d.MaxTemp
	}
	return t
}

// DeviceSnapshot is the server's echo after a mutation. Absent fields were
// not reported and leave the local value untouched.
type DeviceSnapshot struct {
	ID          int   `json:"id"`
	Power       *bool `json:"power,omitempty"`
	Temperature *int  `json:"temperature,omitempty"`
	Mode        *Mode `json:"mode,omitempty"`
	FanSpeed    *int  `json:"fan_speed,omitempty"`
	Swing       *bool `json:"swing,omitempty"`
}

// ApplyTo copies every reported field onto d.
func (s DeviceSnapshot) ApplyTo(d *Device) {
	if s.Power != nil {
		d.Power = *s.Power
	}
	if s.Temperature != nil {
		d.Temperature = *s.Temperature
	}
	if s.Mode != nil {
		d.Mode = *s.Mode
	}
	if s.FanSpeed != nil {
		d.FanSpeed = *s.FanSpeed
	}
	if s.Swing != nil {
		d.Swing = *s.Swing
	}
}

// SnapshotOf reports every control field of d.
func SnapshotOf(d Device) DeviceSnapshot {
	return DeviceSnapshot{
		ID:          d.ID,
		Power:       &d.Power,
		Temperature: &d.Temperature,
		Mode:        &d.Mode,
		FanSpeed:    &d.FanSpeed,
		Swing:       &d.Swing,
	}
}
