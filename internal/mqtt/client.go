package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

const (
	willQoS        = 1
	disconnectWait = 250 // ms
)

// Client owns the broker connection shared by Publisher and Subscriber
type Client struct {
	client mqtt.Client
	config ClientConfig
}

// ClientConfig holds MQTT client configuration. When WillTopic is set the
// broker publishes WillPayload there, retained, if the bridge drops off
// without disconnecting.
type ClientConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	WillTopic   string
	WillPayload []byte
}

// NewClient connects to the broker. Reconnects are handled by paho.
func NewClient(config ClientConfig) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(unroutedHandler)
	opts.SetOnConnectHandler(onConnect)
	opts.SetConnectionLostHandler(onConnectionLost)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if config.WillTopic != "" {
		opts.SetBinaryWill(config.WillTopic, config.WillPayload, willQoS, true)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", config.Broker, token.Error())
	}

	log := logger.For("mqtt").WithField("client_id", config.ClientID)
	log.Infof("Connected to broker %s", config.Broker)
	if config.WillTopic != "" {
		log.Debugf("Offline will registered on %s", config.WillTopic)
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

// OfflineWill builds the retained status the broker should publish for
// clientID once the bridge is gone: the server and device both reported
// unreachable as of at.
func OfflineWill(statusPattern, clientID string, at time.Time) (string, []byte, error) {
	report := models.NewStatusReport(clientID, models.InitialSnapshot().OfflineProjection(), at)
	payload, err := json.Marshal(report)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal offline will: %w", err)
	}
	return formatTopic(statusPattern, clientID), payload, nil
}

// GetNativeClient returns the paho client Publisher and Subscriber share
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// ClientID returns the id topics are formatted with
func (c *Client) ClientID() string {
	return c.config.ClientID
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects cleanly, so the broker discards the will
func (c *Client) Close() {
	c.client.Disconnect(disconnectWait)
	logger.For("mqtt").Info("Disconnected")
}

func unroutedHandler(client mqtt.Client, msg mqtt.Message) {
	logger.For("mqtt").Debugf("Unrouted message on topic %s", msg.Topic())
}

func onConnect(client mqtt.Client) {
	logger.For("mqtt").Info("Connection established")
}

func onConnectionLost(client mqtt.Client, err error) {
	logger.For("mqtt").WithError(err).Warn("Connection lost, paho will reconnect")
}
