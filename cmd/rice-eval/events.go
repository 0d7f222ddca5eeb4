package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/config"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and replay the evaluation event journal",
	}
	cmd.PersistentFlags().String("log", "", "journal path (default bus.event_log)")
	cmd.PersistentFlags().Duration("since", 0, "only events recorded within this window, e.g. 24h")
	cmd.AddCommand(eventsListCmd(), eventsReplayCmd())
	return cmd
}

func eventsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print journal entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			path, since, err := journalArgs(cmd, cfg)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			entries, err := bus.ReadJournal(path, since, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDED\tTOPIC\tRUN\tEVENT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.RecordedAt.Format(time.RFC3339), e.Topic, e.Event.CorrelationID, e.Event.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntP("limit", "n", 0, "maximum entries, 0 for all")
	return cmd
}

func eventsReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Republish journal entries onto the configured bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			path, since, err := journalArgs(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Replaying through a journaled bus would append the entries again.
			busCfg := cfg.Bus
			busCfg.EventLog = ""
			eventBus, err := bus.NewBus(busCfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = eventBus.Close() }()

			n, err := bus.Replay(ctx, path, eventBus, since)
			if err != nil {
				return err
			}
			fmt.Printf("Replayed %d events from %s\n", n, path)
			return nil
		},
	}
}

func journalArgs(cmd *cobra.Command, cfg *config.Config) (string, time.Time, error) {
	path, _ := cmd.Flags().GetString("log")
	if path == "" {
		path = cfg.Bus.EventLog
	}
	if path == "" {
		return "", time.Time{}, fmt.Errorf("no journal configured: set --log or bus.event_log")
	}

	var since time.Time
	if window, _ := cmd.Flags().GetDuration("since"); window > 0 {
		since = time.Now().Add(-window)
	}
	return path, since, nil
}
