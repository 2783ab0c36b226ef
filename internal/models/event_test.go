package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRemoteCommandRequest(t *testing.T) {
	tests := []struct {
		name    string
		cmd     RemoteCommand
		want    DispenseRequest
		wantErr bool
	}{
		{"amount", RemoteCommand{AmountMl: 25, UserToken: "abc"}, DispenseRequest{AmountMl: 25, UserToken: "abc"}, false},
		{"preset wins", RemoteCommand{AmountMl: 5, Preset: "double"}, DispenseRequest{AmountMl: 30, UserToken: "kiosk"}, false},
		{"default token", RemoteCommand{AmountMl: 15}, DispenseRequest{AmountMl: 15, UserToken: "kiosk"}, false},
		{"unknown preset", RemoteCommand{Preset: "pint"}, DispenseRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Request("kiosk")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewStatusReport(t *testing.T) {
	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	snap := StatusSnapshot{
		ServerOnline: true,
		DeviceOnline: true,
		DeviceState:  DeviceIdle,
		IsPouring:    true,
		LastPourMl:   30,
	}

	got := NewStatusReport("bar-1", snap, at)
	want := StatusReport{
		Timestamp:    at,
		ClientID:     "bar-1",
		ServerOnline: true,
		DeviceOnline: true,
		DeviceState:  DeviceIdle,
		ActivePour:   true,
		LastPourMl:   30,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}
