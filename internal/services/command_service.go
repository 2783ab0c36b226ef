package services

import (
	"context"
	"errors"

	"dispenser-client/internal/dispense"
	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

// Dispenser accepts dispense requests; Session implements it
type Dispenser interface {
	Dispense(ctx context.Context, req models.DispenseRequest) error
}

// CommandService feeds remote commands into the session. The session's
// single-flight rule still applies: a command that arrives while another
// is in progress is dropped.
type CommandService struct {
	dispenser    Dispenser
	defaultToken string

	// Input channel, written by the MQTT subscriber
	CommandChan chan *models.RemoteCommand
}

// NewCommandService creates a command service reading from commandChan
func NewCommandService(dispenser Dispenser, defaultToken string, commandChan chan *models.RemoteCommand) *CommandService {
	return &CommandService{
		dispenser:    dispenser,
		defaultToken: defaultToken,
		CommandChan:  commandChan,
	}
}

// Start handles commands until ctx is cancelled or the channel is closed
func (c *CommandService) Start(ctx context.Context) {
	log := logger.For("commands")
	log.Info("Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down...")
			return
		case cmd, ok := <-c.CommandChan:
			if !ok {
				log.Info("Command channel closed, shutting down...")
				return
			}
			c.handle(ctx, cmd)
		}
	}
}

func (c *CommandService) handle(ctx context.Context, cmd *models.RemoteCommand) {
	log := logger.For("commands")

	req, err := cmd.Request(c.defaultToken)
	if err != nil {
		log.WithError(err).Warn("Ignoring remote command")
		return
	}

	err = c.dispenser.Dispense(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, dispense.ErrBusy):
		log.Info("Dispense in progress, dropping remote command")
	default:
		log.WithError(err).Warn("Remote command rejected")
	}
}
