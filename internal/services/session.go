// Package services composes the dispenser client: status polling, the
// dispense lifecycle, dependent-view refresh, and the optional sinks that
// publish or record what the session observes.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dispenser-client/internal/clock"
	"dispenser-client/internal/dispense"
	"dispenser-client/internal/feed"
	"dispenser-client/internal/models"
	"dispenser-client/internal/refresh"
	"dispenser-client/internal/status"
	"dispenser-client/pkg/config"
	"dispenser-client/pkg/logger"
)

// Transport is everything the session reads from or sends to the dispenser
type Transport interface {
	status.Fetcher
	dispense.Submitter
	feed.Source
}

// NoticeKind classifies a user-visible notification
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a user-visible notification about the dispense command
type Notice struct {
	Kind    NoticeKind
	Message string
}

// SessionConfig holds session configuration
type SessionConfig struct {
	ClientID  string
	UserToken string // used when a request carries none

	StatusInterval        time.Duration
	StatusOfflineInterval time.Duration
	LogsInterval          time.Duration
	LeaderboardInterval   time.Duration
	LogsLimit             int
	LeaderboardLimit      int

	PourTimeout      time.Duration
	FeedbackDuration time.Duration
	SettleDelay      time.Duration

	Clock    clock.Clock
	OnNotice func(Notice)
}

// SessionConfigFrom maps the process configuration onto a session
func SessionConfigFrom(cfg *config.Config) SessionConfig {
	return SessionConfig{
		ClientID:              cfg.MQTTClientID,
		UserToken:             cfg.UserToken,
		StatusInterval:        cfg.StatusInterval,
		StatusOfflineInterval: cfg.StatusOfflineInterval,
		LogsInterval:          cfg.LogsInterval,
		LeaderboardInterval:   cfg.LeaderboardInterval,
		LogsLimit:             cfg.LogsLimit,
		LeaderboardLimit:      cfg.LeaderboardLimit,
		PourTimeout:           cfg.PourTimeout,
		FeedbackDuration:      cfg.FeedbackDuration,
		SettleDelay:           cfg.SettleDelay,
	}
}

// Session is one client session against a dispenser
type Session struct {
	clientID  string
	userToken string
	clock     clock.Clock
	onNotice  func(Notice)

	status      *status.Synchronizer
	engine      *dispense.Engine
	refresher   *refresh.Refresher
	logs        *feed.Poller[models.LogEntry]
	leaderboard *feed.Poller[models.LeaderboardEntry]

	mu          sync.Mutex
	eventSinks  []chan<- *models.LifecycleEvent
	statusSinks []chan<- *models.StatusReport
	started     bool
	closed      bool
}

// NewSession wires the session's components. Nothing runs until Start.
func NewSession(transport Transport, cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	s := &Session{
		clientID:  cfg.ClientID,
		userToken: cfg.UserToken,
		clock:     cfg.Clock,
		onNotice:  cfg.OnNotice,
	}

	s.status = status.NewSynchronizer(transport, status.Config{
		OnlineInterval:  cfg.StatusInterval,
		OfflineInterval: cfg.StatusOfflineInterval,
		Clock:           cfg.Clock,
	})
	s.status.Subscribe(s.publishStatus)

	s.logs = feed.NewLogs(transport, cfg.LogsLimit, cfg.LogsInterval, cfg.Clock)
	s.leaderboard = feed.NewLeaderboard(transport, cfg.LeaderboardLimit, cfg.LeaderboardInterval, cfg.Clock)

	s.refresher = refresh.NewRefresher(refresh.Config{
		SettleDelay: cfg.SettleDelay,
		Clock:       cfg.Clock,
	})
	s.refresher.Add("status", s.status)
	s.refresher.Add("logs", s.logs)
	s.refresher.Add("leaderboard", s.leaderboard)

	s.engine = dispense.NewEngine(transport, dispense.Config{
		PourTimeout:      cfg.PourTimeout,
		FeedbackDuration: cfg.FeedbackDuration,
		Clock:            cfg.Clock,
		OnChange:         s.publishChange,
		OnSuccess:        s.handleSuccess,
		OnError:          s.handleError,
	})

	return s
}

// AddEventSink registers a channel receiving every lifecycle transition.
// Sends never block; a full sink drops the event.
func (s *Session) AddEventSink(ch chan<- *models.LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSinks = append(s.eventSinks, ch)
}

// AddStatusSink registers a channel receiving every stored status snapshot.
// Sends never block; a full sink drops the report.
func (s *Session) AddStatusSink(ch chan<- *models.StatusReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusSinks = append(s.statusSinks, ch)
}

// Start begins polling status, logs and leaderboard. Each poller fetches
// once before Start returns. Post-dispense refreshes run under ctx too.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	logger.For("session").Infof("Starting session %s", s.clientID)
	s.refresher.Start(ctx)
	s.status.Start(ctx)
	s.logs.Start(ctx)
	s.leaderboard.Start(ctx)
}

// Close stops every timer the session owns. No callback fires afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.engine.Close()
	s.refresher.Close()
	s.status.Stop()
	s.logs.Stop()
	s.leaderboard.Stop()
	logger.For("session").Info("Session closed")
}

// Dispense submits req, filling in the session's user token when empty
func (s *Session) Dispense(ctx context.Context, req models.DispenseRequest) error {
	if req.UserToken == "" {
		req.UserToken = s.userToken
	}
	return s.engine.Dispense(ctx, req)
}

// DispensePreset submits a preset volume for the session's user
func (s *Session) DispensePreset(ctx context.Context, label string) error {
	p, ok := models.PresetByLabel(label)
	if !ok {
		return fmt.Errorf("unknown preset %q", label)
	}
	return s.Dispense(ctx, models.DispenseRequest{AmountMl: p.Ml})
}

// Status returns the latest status snapshot
func (s *Session) Status() models.StatusSnapshot {
	return s.status.Snapshot()
}

// StatusUpdatedAt returns when the latest status fetch completed
func (s *Session) StatusUpdatedAt() time.Time {
	return s.status.LastUpdated()
}

// RefreshStatus fetches status outside the polling cadence
func (s *Session) RefreshStatus(ctx context.Context) error {
	return s.status.Refresh(ctx)
}

func (s *Session) Lifecycle() dispense.State {
	return s.engine.State()
}

func (s *Session) LastError() string {
	return s.engine.LastError()
}

func (s *Session) Logs() []models.LogEntry {
	return s.logs.Items()
}

func (s *Session) Leaderboard() []models.LeaderboardEntry {
	return s.leaderboard.Items()
}

func (s *Session) handleSuccess() {
	s.refresher.Trigger()
	s.notify(Notice{Kind: NoticeSuccess, Message: "Dispense complete"})
}

func (s *Session) handleError(reason string) {
	s.notify(Notice{Kind: NoticeError, Message: reason})
}

func (s *Session) notify(n Notice) {
	if s.onNotice != nil {
		s.onNotice(n)
	}
}

func (s *Session) publishChange(c dispense.Change) {
	ev := &models.LifecycleEvent{
		Timestamp: c.At,
		ClientID:  s.clientID,
		CommandID: c.CommandID,
		FromState: string(c.From),
		ToState:   string(c.To),
		AmountMl:  c.Request.AmountMl,
		UserToken: c.Request.UserToken,
		Reason:    c.Reason,
	}

	s.mu.Lock()
	sinks := append([]chan<- *models.LifecycleEvent(nil), s.eventSinks...)
	s.mu.Unlock()

	for _, ch := range sinks {
		select {
		case ch <- ev:
		default:
			logger.For("session").WithField("command_id", c.CommandID).Warn("Event sink full, dropping lifecycle event")
		}
	}
}

func (s *Session) publishStatus(snap models.StatusSnapshot) {
	report := models.NewStatusReport(s.clientID, snap, s.clock.Now())

	s.mu.Lock()
	sinks := append([]chan<- *models.StatusReport(nil), s.statusSinks...)
	s.mu.Unlock()

	for _, ch := range sinks {
		select {
		case ch <- &report:
		default:
			logger.For("session").Debug("Status sink full, dropping report")
		}
	}
}
