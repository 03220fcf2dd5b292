// Command refresh tops up the dose look-ahead window for every recipient.
// Run it daily (cron, scheduled task) so upcoming-dose queries always have
// a full window even for medications nobody has touched in a week.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/medtrack/backend/internal/app"
	"github.com/medtrack/backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RefreshTimeout)
	defer cancel()

	application, closeStore, err := app.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	start := time.Now()
	n, err := application.RefreshAll(ctx)
	if err != nil {
		logger.Error("refresh failed", "error", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("refresh complete", "doses_generated", n, "duration_ms", time.Since(start).Milliseconds())
}
