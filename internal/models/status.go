package models

import "time"

// DeviceState is the hardware state reported by the dispenser controller
type DeviceState string

const (
	DeviceIdle    DeviceState = "idle"
	DevicePouring DeviceState = "pouring"
	DeviceOffline DeviceState = "offline"
	DeviceError   DeviceState = "error"
)

// DeviceStatus is the controller status nested in GET /api/status
type DeviceStatus struct {
	State        DeviceState `json:"state"`
	GlassPresent bool        `json:"glass_present"`
	Uptime       float64     `json:"uptime"`       // seconds
	LastPourMl   float64     `json:"last_pour_ml"` // millilitres
}

// SystemStatus is the wire shape of GET /api/status
type SystemStatus struct {
	ServerOnline bool         `json:"server_online"`
	EspOnline    bool         `json:"esp_online"`
	EspStatus    DeviceStatus `json:"esp_status"`
	Timestamp    float64      `json:"timestamp"` // epoch seconds
	IsPouring    bool         `json:"is_pouring"`
}

// StatusSnapshot is the latest known combined server and device status.
// It is a value type; pollers replace it wholesale.
type StatusSnapshot struct {
	ServerOnline           bool
	DeviceOnline           bool
	DeviceState            DeviceState
	GlassPresent           bool
	UptimeSeconds          float64
	LastPourMl             float64
	IsPouring              bool
	ObservedAtEpochSeconds float64
}

// InitialSnapshot is the all-offline snapshot a session starts with
func InitialSnapshot() StatusSnapshot {
	return StatusSnapshot{DeviceState: DeviceOffline}
}

// SnapshotFromWire maps the snake_case wire status onto the semantic model
func SnapshotFromWire(s SystemStatus) StatusSnapshot {
	state := s.EspStatus.State
	if state == "" {
		state = DeviceOffline
	}
	return StatusSnapshot{
		ServerOnline:           s.ServerOnline,
		DeviceOnline:           s.EspOnline,
		DeviceState:            state,
		GlassPresent:           s.EspStatus.GlassPresent,
		UptimeSeconds:          s.EspStatus.Uptime,
		LastPourMl:             s.EspStatus.LastPourMl,
		IsPouring:              s.IsPouring,
		ObservedAtEpochSeconds: s.Timestamp,
	}
}

// OfflineProjection keeps everything the previous snapshot knew except
// connectivity, which is forced to offline.
func (s StatusSnapshot) OfflineProjection() StatusSnapshot {
	s.ServerOnline = false
	s.DeviceOnline = false
	s.DeviceState = DeviceOffline
	return s
}

// ActivePour reports whether either source says a pour is running.
// The server flag and the controller state can disagree; both count.
func (s StatusSnapshot) ActivePour() bool {
	return s.IsPouring || s.DeviceState == DevicePouring
}

// ObservedAt converts the epoch-seconds timestamp to wall-clock time
func (s StatusSnapshot) ObservedAt() time.Time {
	return EpochSeconds(s.ObservedAtEpochSeconds)
}

// EpochSeconds converts fractional epoch seconds to a time.Time.
// Zero maps to the zero time.
func EpochSeconds(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(sec * 1000))
}
