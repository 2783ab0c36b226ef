package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dispenser-client/internal/api"
	"dispenser-client/internal/services"
	"dispenser-client/pkg/config"
	"dispenser-client/pkg/logger"
)

var (
	cfg      *config.Config
	baseURL  string
	logLevel string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dispenser: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispenser",
		Short: "Client for the liquid dispenser service",
		Long: `dispenser talks to a dispenser server: it shows device status, the activity log and
the leaderboard, submits dispense commands, and can run as a long-lived bridge that
publishes events over MQTT and records history in ClickHouse.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger.Init(cfg.LogLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", "", "Dispenser server base URL (overrides DISPENSER_BASE_URL)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	cmd.AddCommand(
		newStatusCmd(),
		newWatchCmd(),
		newPourCmd(),
		newLogsCmd(),
		newLeaderboardCmd(),
		newHistoryCmd(),
		newRunCmd(),
	)
	return cmd
}

func newAPIClient() (*api.Client, error) {
	return api.NewClient(api.ClientConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
	})
}

func newSession(opts ...func(*services.SessionConfig)) (*services.Session, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	sc := services.SessionConfigFrom(cfg)
	for _, opt := range opts {
		opt(&sc)
	}
	return services.NewSession(client, sc), nil
}
