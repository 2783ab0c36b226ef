package feed

import (
	"context"
	"time"

	"dispenser-client/internal/clock"
	"dispenser-client/internal/models"
)

// Source is the subset of the transport the feeds read from
type Source interface {
	FetchLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	FetchLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// NewLogs polls the most recent limit log entries
func NewLogs(src Source, limit int, interval time.Duration, c clock.Clock) *Poller[models.LogEntry] {
	if interval <= 0 {
		interval = DefaultLogsInterval
	}
	fetch := func(ctx context.Context) ([]models.LogEntry, error) {
		return src.FetchLogs(ctx, limit)
	}
	return NewPoller("logs", fetch, interval, c)
}

// NewLeaderboard polls the top limit leaderboard entries
func NewLeaderboard(src Source, limit int, interval time.Duration, c clock.Clock) *Poller[models.LeaderboardEntry] {
	if interval <= 0 {
		interval = DefaultLeaderboardInterval
	}
	fetch := func(ctx context.Context) ([]models.LeaderboardEntry, error) {
		return src.FetchLeaderboard(ctx, limit)
	}
	return NewPoller("leaderboard", fetch, interval, c)
}
