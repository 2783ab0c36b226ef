package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

// subscribeClient is the part of mqtt.Client the subscriber needs
type subscribeClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Subscriber turns messages on the command topic into remote commands
type Subscriber struct {
	client subscribeClient

	// Output channel (written by subscriber, read by the session)
	CommandChan chan *models.RemoteCommand

	commandTopic string
	sendTimeout  time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	CommandTopic string // e.g., "dispenser/{client_id}/command"
	ClientID     string
}

// NewSubscriber creates a new MQTT subscriber with channels
func NewSubscriber(
	client subscribeClient,
	config SubscriberConfig,
	commandChan chan *models.RemoteCommand,
) *Subscriber {
	return &Subscriber{
		client:       client,
		CommandChan:  commandChan,
		commandTopic: formatTopic(config.CommandTopic, config.ClientID),
		sendTimeout:  time.Second,
	}
}

// SubscribeAll subscribes to the configured command topic
func (s *Subscriber) SubscribeAll() error {
	if s.commandTopic == "" {
		return nil
	}

	token := s.client.Subscribe(s.commandTopic, 1, s.handleCommand)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to command topic: %w", token.Error())
	}
	logger.For("mqtt-subscriber").Infof("Subscribed to command topic: %s", s.commandTopic)
	return nil
}

// handleCommand decodes a remote command and hands it to the session.
// Commands that cannot be delivered in time are dropped, never queued.
func (s *Subscriber) handleCommand(client mqtt.Client, msg mqtt.Message) {
	log := logger.For("mqtt-subscriber").WithField("topic", msg.Topic())

	var cmd models.RemoteCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		log.WithError(err).Warn("Error unmarshaling remote command")
		return
	}

	log.Infof("Received remote command from %s: amount=%dml preset=%q",
		extractClientID(msg.Topic()), cmd.AmountMl, cmd.Preset)

	select {
	case s.CommandChan <- &cmd:
	case <-time.After(s.sendTimeout):
		log.Warn("Command channel full, dropping remote command")
	}
}

// extractClientID extracts the client id from a topic
// Example: "dispenser/bar-1/command" -> "bar-1"
func extractClientID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
