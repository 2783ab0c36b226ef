package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"dispenser-client/pkg/logger"
)

type Config struct {
	// Remote dispenser service
	BaseURL     string
	UserToken   string
	HTTPTimeout time.Duration

	// Polling cadences
	StatusInterval        time.Duration
	StatusOfflineInterval time.Duration
	LogsInterval          time.Duration
	LeaderboardInterval   time.Duration
	LogsLimit             int
	LeaderboardLimit      int

	// Command lifecycle timings
	PourTimeout      time.Duration
	FeedbackDuration time.Duration
	SettleDelay      time.Duration

	// MQTT bridge (disabled when broker is empty)
	MQTTBroker       string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopicEvents  string
	MQTTTopicStatus  string
	MQTTTopicCommand string
	MQTTStatusWill   bool

	// ClickHouse history (disabled when addr is empty)
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	LogLevel string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		BaseURL:     getEnv("DISPENSER_BASE_URL", "http://localhost:5000"),
		UserToken:   getEnv("DISPENSER_USER_TOKEN", "anonymous"),
		HTTPTimeout: getEnvDuration("DISPENSER_HTTP_TIMEOUT", 5*time.Second),

		StatusInterval:        getEnvDuration("POLL_STATUS_INTERVAL", 2*time.Second),
		StatusOfflineInterval: getEnvDuration("POLL_STATUS_OFFLINE_INTERVAL", 5*time.Second),
		LogsInterval:          getEnvDuration("POLL_LOGS_INTERVAL", 5*time.Second),
		LeaderboardInterval:   getEnvDuration("POLL_LEADERBOARD_INTERVAL", 10*time.Second),
		LogsLimit:             getEnvInt("LOGS_LIMIT", 15),
		LeaderboardLimit:      getEnvInt("LEADERBOARD_LIMIT", 20),

		PourTimeout:      getEnvDuration("POUR_TIMEOUT", 4*time.Second),
		FeedbackDuration: getEnvDuration("FEEDBACK_DURATION", 3*time.Second),
		SettleDelay:      getEnvDuration("SETTLE_DELAY", 1*time.Second),

		MQTTBroker:       getEnv("MQTT_BROKER", ""),
		MQTTClientID:     getEnv("MQTT_CLIENT_ID", "dispenser-client"),
		MQTTUsername:     getEnv("MQTT_USERNAME", ""),
		MQTTPassword:     getEnv("MQTT_PASSWORD", ""),
		MQTTTopicEvents:  getEnv("MQTT_TOPIC_EVENTS", "dispenser/{client_id}/events"),
		MQTTTopicStatus:  getEnv("MQTT_TOPIC_STATUS", "dispenser/{client_id}/status"),
		MQTTTopicCommand: getEnv("MQTT_TOPIC_COMMAND", "dispenser/{client_id}/command"),
		MQTTStatusWill:   getEnvBool("MQTT_STATUS_WILL", true),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "dispenser"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// MQTTEnabled reports whether a broker was configured
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// ClickHouseEnabled reports whether a history store was configured
func (c *Config) ClickHouseEnabled() bool {
	return c.ClickHouseAddr != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil || intValue <= 0 {
		logger.Get().Warnf("failed to parse %s as positive int, using default %d", key, defaultValue)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Get().Warnf("failed to parse %s as duration, using default %v", key, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		logger.Get().Warnf("failed to parse %s as bool, using default %t", key, defaultValue)
		return defaultValue
	}
	return b
}
