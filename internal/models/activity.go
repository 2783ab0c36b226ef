package models

import "time"

// LogStatus is the outcome recorded for a dispense attempt
type LogStatus string

const (
	LogStarted   LogStatus = "started"
	LogCompleted LogStatus = "completed"
	LogFailed    LogStatus = "failed"
)

// LogEntry is a single row of GET /api/logs
type LogEntry struct {
	ObservedAtEpochSeconds float64   `json:"timestamp"`
	UserToken              string    `json:"user_token"`
	AmountMl               float64   `json:"amount_ml"`
	Status                 LogStatus `json:"status"`
	Reason                 *string   `json:"reason"`
}

// ObservedAt converts the epoch-seconds timestamp to wall-clock time
func (e LogEntry) ObservedAt() time.Time {
	return EpochSeconds(e.ObservedAtEpochSeconds)
}

// LeaderboardEntry is a single row of GET /api/leaderboard.
// Rows arrive ranked by descending total volume; order is preserved as-is.
type LeaderboardEntry struct {
	UserToken  string `json:"user_token"`
	PourCount  int    `json:"pour_count"`
	TotalMl    int    `json:"total_ml"`
	LastPourAt string `json:"last_pour"`
}
