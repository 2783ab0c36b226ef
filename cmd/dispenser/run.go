package main

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dispenser-client/internal/database"
	"dispenser-client/internal/models"
	"dispenser-client/internal/mqtt"
	"dispenser-client/internal/services"
	"dispenser-client/pkg/logger"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the session as a bridge to MQTT and ClickHouse until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd)
		},
	}
}

func runBridge(cmd *cobra.Command) error {
	log := logger.For("main")
	log.Infof("Starting dispenser bridge for %s...", cfg.BaseURL)

	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)

	session, err := newSession(func(sc *services.SessionConfig) {
		sc.OnNotice = func(n services.Notice) {
			log.WithField("kind", n.Kind).Info(n.Message)
		}
	})
	if err != nil {
		return err
	}
	defer session.Close()

	// === ClickHouse history ===
	if cfg.ClickHouseEnabled() {
		db, err := database.NewClickHouseDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			return err
		}
		defer db.Close()

		history := services.NewHistoryService(db, services.DefaultHistoryServiceConfig())
		session.AddEventSink(history.EventChan)
		session.AddStatusSink(history.StatusChan)
		g.Go(func() error {
			history.Start(ctx)
			return nil
		})
	} else {
		log.Info("CLICKHOUSE_ADDR not set, history disabled")
	}

	// === MQTT bridge ===
	if cfg.MQTTEnabled() {
		clientConfig := mqtt.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}
		if cfg.MQTTStatusWill {
			clientConfig.WillTopic, clientConfig.WillPayload, err = mqtt.OfflineWill(cfg.MQTTTopicStatus, cfg.MQTTClientID, time.Now())
			if err != nil {
				return err
			}
		}
		mqttClient, err := mqtt.NewClient(clientConfig)
		if err != nil {
			return err
		}
		defer mqttClient.Close()

		eventChan := make(chan *models.LifecycleEvent, 50)
		statusChan := make(chan *models.StatusReport, 50)
		session.AddEventSink(eventChan)
		session.AddStatusSink(statusChan)

		publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
			EventsTopic: cfg.MQTTTopicEvents,
			StatusTopic: cfg.MQTTTopicStatus,
		}, eventChan, statusChan)
		g.Go(func() error {
			publisher.Start(ctx)
			return nil
		})

		commandChan := make(chan *models.RemoteCommand, 1)
		subscriber := mqtt.NewSubscriber(mqttClient.GetNativeClient(), mqtt.SubscriberConfig{
			CommandTopic: cfg.MQTTTopicCommand,
			ClientID:     mqttClient.ClientID(),
		}, commandChan)
		if err := subscriber.SubscribeAll(); err != nil {
			return err
		}

		commands := services.NewCommandService(session, cfg.UserToken, commandChan)
		g.Go(func() error {
			commands.Start(ctx)
			return nil
		})

		log.Infof("MQTT topics: events=%s status=%s command=%s",
			cfg.MQTTTopicEvents, cfg.MQTTTopicStatus, cfg.MQTTTopicCommand)
	} else {
		log.Info("MQTT_BROKER not set, MQTT bridge disabled")
	}

	session.Start(ctx)
	log.Info("=== Dispenser bridge is running, press Ctrl+C to exit ===")

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping services...")
	session.Close()

	err = g.Wait()
	log.Info("Shutdown complete")
	return err
}
