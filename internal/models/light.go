package models

// Brightness bounds for a light's level.
const (
	MinLightLevel = 1
	MaxLightLevel = 100
)

// Light is a dimmable light.
type Light struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RoomID   int    `json:"room_id,omitempty"`
	IsActive bool   `json:"is_active"`
	Level    int    `json:"level"` // 1-100
}

// LightSnapshot is the server's echo after a light mutation.
type LightSnapshot struct {
	ID       int   `json:"id"`
	IsActive *bool `json:"is_active,omitempty"`
	Level    *int  `json:"level,omitempty"`
}

func (s LightSnapshot) ApplyTo(l *Light) {
	if s.IsActive != nil {
		l.IsActive = *s.IsActive
	}
	if s.Level != nil {
		l.Level = *s.Level
	}
}

func LightSnapshotOf(l Light) LightSnapshot {
	return LightSnapshot{ID: l.ID, IsActive: &l.IsActive, Level: &l.Level}
}
