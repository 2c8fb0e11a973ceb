// ainews collects AI news from RSS feeds, ranks it and delivers a daily
// digest.
//
// Usage:
//
//	ainews                 run once and exit
//	ainews schedule        run every day at SEND_TIME
//	ainews check           verify notifiers and feeds without sending
//	ainews test-notify     send a sample digest
//	ainews history         list recently delivered items
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/ainews/internal/app"
	"github.com/deusflow/ainews/internal/config"
	"github.com/deusflow/ainews/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var cfg *config.Config

// serveMonitoring is replaced in tests.
var serveMonitoring = startMonitoringServer

var rootCmd = &cobra.Command{
	Use:   "ainews",
	Short: "Daily AI news digest",
	Long:  "ainews fetches AI news feeds, filters, deduplicates and ranks the\narticles, and delivers the top items to the configured notifiers.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runOnce,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(testNotifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	cfg = c
	logger.Init(cfg.LogLevel)
	return nil
}

// startMonitoring serves /health and /metrics for the digest-producing
// commands when ENABLE_HTTP_MONITORING is set.
func startMonitoring(ctx context.Context) bool {
	if !cfg.EnableHTTPMonitoring {
		return false
	}
	go serveMonitoring(ctx, cfg.MonitoringPort)
	return true
}

// withApp builds the application, runs fn and releases it.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.For("main").Warn("close failed", "error", err)
		}
	}()
	return fn(a)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	startMonitoring(cmd.Context())
	return withApp(cmd.Context(), func(a *app.App) error {
		_, err := a.RunOnce(cmd.Context())
		return err
	})
}
