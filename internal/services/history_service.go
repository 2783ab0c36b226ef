package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

// Recorder persists what the session observes
type Recorder interface {
	SaveSnapshot(ctx context.Context, report *models.StatusReport) error
	SaveLifecycleEvent(ctx context.Context, ev *models.LifecycleEvent) error
}

// HistoryService drains session events into a Recorder
type HistoryService struct {
	recorder Recorder

	// Input channels, registered as session sinks
	EventChan  chan *models.LifecycleEvent
	StatusChan chan *models.StatusReport
}

// HistoryServiceConfig holds configuration for history service
type HistoryServiceConfig struct {
	EventChannelSize  int
	StatusChannelSize int
}

// DefaultHistoryServiceConfig returns default configuration
func DefaultHistoryServiceConfig() HistoryServiceConfig {
	return HistoryServiceConfig{
		EventChannelSize:  50,
		StatusChannelSize: 100,
	}
}

// NewHistoryService creates a new history service
func NewHistoryService(recorder Recorder, config HistoryServiceConfig) *HistoryService {
	return &HistoryService{
		recorder:   recorder,
		EventChan:  make(chan *models.LifecycleEvent, config.EventChannelSize),
		StatusChan: make(chan *models.StatusReport, config.StatusChannelSize),
	}
}

// Start processes both channels until ctx is cancelled
func (h *HistoryService) Start(ctx context.Context) {
	log := logger.For("history")
	log.Info("Starting...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.processEventLoop(ctx)
		return nil
	})
	g.Go(func() error {
		h.processStatusLoop(ctx)
		return nil
	})
	g.Wait()

	log.Info("Shutdown complete")
}

func (h *HistoryService) processEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.EventChan:
			if !ok {
				return
			}
			if err := h.recorder.SaveLifecycleEvent(ctx, ev); err != nil {
				logger.For("history").WithError(err).Warn("Error saving lifecycle event")
			}
		}
	}
}

func (h *HistoryService) processStatusLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-h.StatusChan:
			if !ok {
				return
			}
			if err := h.recorder.SaveSnapshot(ctx, report); err != nil {
				logger.For("history").WithError(err).Debug("Error saving status snapshot")
			}
		}
	}
}
