package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

// publishClient is the part of mqtt.Client the publisher needs
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher drains lifecycle events and status reports onto their topics
type Publisher struct {
	client publishClient

	// Input channels (read by publisher, written by the session)
	EventChan  chan *models.LifecycleEvent
	StatusChan chan *models.StatusReport

	eventsTopic string // e.g., "dispenser/{client_id}/events"
	statusTopic string // e.g., "dispenser/{client_id}/status"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	EventsTopic string
	StatusTopic string
}

// NewPublisher creates a new MQTT publisher with channels
func NewPublisher(
	client publishClient,
	config PublisherConfig,
	eventChan chan *models.LifecycleEvent,
	statusChan chan *models.StatusReport,
) *Publisher {
	return &Publisher{
		client:      client,
		EventChan:   eventChan,
		StatusChan:  statusChan,
		eventsTopic: config.EventsTopic,
		statusTopic: config.StatusTopic,
	}
}

// Start publishes from both channels until ctx is cancelled or either
// channel is closed
func (p *Publisher) Start(ctx context.Context) {
	log := logger.For("mqtt-publisher")
	log.Info("Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down...")
			return

		case ev, ok := <-p.EventChan:
			if !ok {
				log.Info("Event channel closed, shutting down...")
				return
			}
			if err := p.publishEvent(ev); err != nil {
				log.WithError(err).Warn("Error publishing lifecycle event")
			}

		case report, ok := <-p.StatusChan:
			if !ok {
				log.Info("Status channel closed, shutting down...")
				return
			}
			if err := p.publishStatus(report); err != nil {
				log.WithError(err).Warn("Error publishing status report")
			}
		}
	}
}

func (p *Publisher) publishEvent(ev *models.LifecycleEvent) error {
	topic := formatTopic(p.eventsTopic, ev.ClientID)
	if err := p.publish(topic, false, ev); err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	logger.For("mqtt-publisher").Debugf("Published %s -> %s for command %s to %s",
		ev.FromState, ev.ToState, ev.CommandID, topic)
	return nil
}

// publishStatus publishes retained so a late subscriber sees the latest status
func (p *Publisher) publishStatus(report *models.StatusReport) error {
	topic := formatTopic(p.statusTopic, report.ClientID)
	if err := p.publish(topic, true, report); err != nil {
		return fmt.Errorf("failed to publish status report: %w", err)
	}
	return nil
}

func (p *Publisher) publish(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// formatTopic replaces the {client_id} placeholder
func formatTopic(topicPattern, clientID string) string {
	return strings.ReplaceAll(topicPattern, "{client_id}", clientID)
}
