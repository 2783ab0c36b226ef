package models

import "strings"

// MaxDispenseMl is the largest volume a single command may request
const MaxDispenseMl = 60

// DispenseRequest is the body of POST /api/dispense
type DispenseRequest struct {
	AmountMl  int    `json:"amount_ml"`
	UserToken string `json:"user_token"`
}

// Valid reports whether the amount is within (0, MaxDispenseMl]
func (r DispenseRequest) Valid() bool {
	return r.AmountMl > 0 && r.AmountMl <= MaxDispenseMl
}

// DispenseOutcome is the response of POST /api/dispense
type DispenseOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Preset is a named volume shortcut
type Preset struct {
	Label       string
	Description string
	Ml          int
}

// Presets are the volumes offered by the dispense control
var Presets = []Preset{
	{Label: "Shot", Description: "15ml", Ml: 15},
	{Label: "Double", Description: "30ml", Ml: 30},
	{Label: "Triple", Description: "45ml", Ml: 45},
}

// PresetByLabel finds a preset case-insensitively
func PresetByLabel(label string) (Preset, bool) {
	for _, p := range Presets {
		if strings.EqualFold(p.Label, label) {
			return p, true
		}
	}
	return Preset{}, false
}
