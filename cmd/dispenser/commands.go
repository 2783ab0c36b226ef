package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dispenser-client/internal/database"
	"dispenser-client/internal/dispense"
	"dispenser-client/internal/models"
	"dispenser-client/internal/services"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch and print the dispenser status once",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			wire, err := client.FetchStatus(cmd.Context())
			snap := models.InitialSnapshot().OfflineProjection()
			if err == nil {
				snap = models.SnapshotFromWire(wire)
			}
			printStatus(cmd.OutOrStdout(), snap)
			return err
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll status until interrupted, printing every update",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			reports := make(chan *models.StatusReport, 8)
			session.AddStatusSink(reports)
			session.Start(cmd.Context())

			out := cmd.OutOrStdout()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case r := <-reports:
					fmt.Fprintf(out, "%s  server=%s device=%s state=%s glass=%v pouring=%v\n",
						r.Timestamp.Format(time.TimeOnly), onlineText(r.ServerOnline), onlineText(r.DeviceOnline),
						r.DeviceState, r.GlassPresent, r.ActivePour)
				}
			}
		},
	}
}

func newPourCmd() *cobra.Command {
	var (
		ml     int
		preset string
		user   string
	)
	cmd := &cobra.Command{
		Use:   "pour",
		Short: "Submit a dispense command and follow it back to idle",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if preset != "" {
				p, ok := models.PresetByLabel(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				ml = p.Ml
			}

			var lastErr string
			session, err := newSession(func(sc *services.SessionConfig) {
				sc.OnNotice = func(n services.Notice) {
					if n.Kind == services.NoticeError {
						lastErr = n.Message
					}
					fmt.Fprintf(out, "%s: %s\n", n.Kind, n.Message)
				}
			})
			if err != nil {
				return err
			}
			defer session.Close()

			events := make(chan *models.LifecycleEvent, 8)
			session.AddEventSink(events)

			if err := session.Dispense(cmd.Context(), models.DispenseRequest{AmountMl: ml, UserToken: user}); err != nil {
				return err
			}

			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case ev := <-events:
					fmt.Fprintf(out, "%s -> %s\n", ev.FromState, ev.ToState)
					if ev.ToState == string(dispense.StateIdle) {
						if lastErr != "" {
							return fmt.Errorf("dispense failed: %s", lastErr)
						}
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&ml, "ml", 30, fmt.Sprintf("Volume in millilitres (1-%d)", models.MaxDispenseMl))
	cmd.Flags().StringVar(&preset, "preset", "", "Preset volume: shot, double or triple (overrides --ml)")
	cmd.Flags().StringVar(&user, "user", "", "User token (defaults to DISPENSER_USER_TOKEN)")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the most recent dispense log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.LogsLimit
			}
			entries, err := client.FetchLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tUSER\tML\tSTATUS\tREASON")
			for _, e := range entries {
				reason := ""
				if e.Reason != nil {
					reason = *e.Reason
				}
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\n",
					e.ObservedAt().Format(time.DateTime), e.UserToken, e.AmountMl, e.Status, reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (defaults to LOGS_LIMIT)")
	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard in server order",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.LeaderboardLimit
			}
			entries, err := client.FetchLeaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tUSER\tPOURS\tTOTAL ML\tLAST POUR")
			for i, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", i+1, e.UserToken, e.PourCount, e.TotalMl, e.LastPourAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (defaults to LEADERBOARD_LIMIT)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent dispense lifecycle transitions recorded in ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.ClickHouseEnabled() {
				return fmt.Errorf("CLICKHOUSE_ADDR is not set")
			}
			db, err := database.NewClickHouseDB(cmd.Context(), cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := db.RecentLifecycleEvents(cmd.Context(), cfg.MQTTClientID, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of transitions")
	return cmd
}

func printHistory(out io.Writer, events []models.LifecycleEvent) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tUSER\tML\tTRANSITION\tREASON")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s -> %s\t%s\n",
			ev.Timestamp.Format(time.DateTime), shortID(ev.CommandID), ev.UserToken, ev.AmountMl,
			ev.FromState, ev.ToState, ev.Reason)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printStatus(w io.Writer, s models.StatusSnapshot) {
	fmt.Fprintf(w, "Server:  %s\n", onlineText(s.ServerOnline))
	fmt.Fprintf(w, "Device:  %s (%s)\n", onlineText(s.DeviceOnline), s.DeviceState)
	fmt.Fprintf(w, "Glass:   %v\n", s.GlassPresent)
	fmt.Fprintf(w, "Pouring: %v\n", s.ActivePour())
	fmt.Fprintf(w, "Uptime:  %s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(w, "Last:    %.0fml\n", s.LastPourMl)
}

func onlineText(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
