package models

import (
	"fmt"
	"time"
)

// LifecycleEvent is one transition of a dispense command, as published on
// the events topic and stored in dispense_events
type LifecycleEvent struct {
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
	CommandID string    `json:"command_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	AmountMl  int       `json:"amount_ml"`
	UserToken string    `json:"user_token"`
	Reason    string    `json:"reason,omitempty"`
}

// StatusReport is a snapshot as published on the status topic and stored
// in status_snapshots
type StatusReport struct {
	Timestamp     time.Time   `json:"timestamp"`
	ClientID      string      `json:"client_id"`
	ServerOnline  bool        `json:"server_online"`
	DeviceOnline  bool        `json:"device_online"`
	DeviceState   DeviceState `json:"device_state"`
	GlassPresent  bool        `json:"glass_present"`
	ActivePour    bool        `json:"active_pour"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	LastPourMl    float64     `json:"last_pour_ml"`
}

// NewStatusReport stamps a snapshot with the time it was stored locally
func NewStatusReport(clientID string, s StatusSnapshot, at time.Time) StatusReport {
	return StatusReport{
		Timestamp:     at,
		ClientID:      clientID,
		ServerOnline:  s.ServerOnline,
		DeviceOnline:  s.DeviceOnline,
		DeviceState:   s.DeviceState,
		GlassPresent:  s.GlassPresent,
		ActivePour:    s.ActivePour(),
		UptimeSeconds: s.UptimeSeconds,
		LastPourMl:    s.LastPourMl,
	}
}

// RemoteCommand is a dispense request received on the command topic.
// Either AmountMl or Preset must be set.
type RemoteCommand struct {
	AmountMl  int    `json:"amount_ml,omitempty"`
	Preset    string `json:"preset,omitempty"`
	UserToken string `json:"user_token,omitempty"`
}

// Request resolves the command into a dispense request. An empty user
// token falls back to defaultToken.
func (c RemoteCommand) Request(defaultToken string) (DispenseRequest, error) {
	amount := c.AmountMl
	if c.Preset != "" {
		p, ok := PresetByLabel(c.Preset)
		if !ok {
			return DispenseRequest{}, fmt.Errorf("unknown preset %q", c.Preset)
		}
		amount = p.Ml
	}

	token := c.UserToken
	if token == "" {
		token = defaultToken
	}
	return DispenseRequest{AmountMl: amount, UserToken: token}, nil
}
