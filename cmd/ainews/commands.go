package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/deusflow/ainews/internal/app"
	"github.com/deusflow/ainews/internal/logger"
)

var scheduleFlags struct {
	runNow bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the digest every day at SEND_TIME until interrupted",
	RunE:  runSchedule,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test notifier connections and one feed without sending",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Check(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all checks passed")
			return nil
		})
	},
}

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Send a sample digest to every notifier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return a.SendTest(cmd.Context())
		})
	},
}

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently delivered items",
	RunE:  runHistory,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleFlags.runNow, "run-now", false, "Also run once at startup")
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Number of items to show")
}

// dailySpec turns HH:MM into a five-field cron expression.
func dailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	hour, minute, err := cfg.SendHourMinute()
	if err != nil {
		return err
	}
	log := logger.For("scheduler")
	startMonitoring(cmd.Context())

	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		job := func() {
			if _, err := a.RunOnce(ctx); err != nil {
				log.Error("scheduled run failed", "error", err)
			}
		}

		c := cron.New()
		if _, err := c.AddFunc(dailySpec(hour, minute), job); err != nil {
			return fmt.Errorf("schedule %q: %w", cfg.SendTime, err)
		}
		c.Start()
		log.Info("scheduler started", "send_time", cfg.SendTime, "next", c.Entries()[0].Next)

		if scheduleFlags.runNow {
			job()
		}

		<-ctx.Done()
		log.Info("shutting down, waiting for a running digest")
		<-c.Stop().Done()
		return nil
	})
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		return printHistory(cmd.Context(), cmd, a)
	})
}

func printHistory(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	items, err := a.Recent(ctx, historyFlags.limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No delivered items recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT\tSCORE\tSOURCE\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\n", it.SentAt.Local().Format("2006-01-02 15:04"), it.Score, it.Source, it.Title)
	}
	return tw.Flush()
}
