package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/grafana/dskit/services"

	"radio-relay/internal/platform/config"
	"radio-relay/internal/platform/durable"
	"radio-relay/internal/platform/logger"
	"radio-relay/internal/platform/metrics"
	"radio-relay/internal/platform/server"
	"radio-relay/internal/relay"
)

func main() {
	_ = config.Load()

	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	metricsAddr := config.GetEnv("METRICS_ADDR", ":9102")
	stateFile := config.GetEnv("STATE_FILE", "/var/lib/radio-hls-relay/state.json")

	log := logger.New(logLevel, logFormat)

	cfg := relay.Config{
		ModeFile:        config.GetEnv("ACTIVE_FILE", "/run/radio/active"),
		AutoDJDir:       config.GetEnv("HLS_AUTODJ", "/var/www/hls/autodj"),
		LiveDir:         config.GetEnv("HLS_LIVE", "/var/www/hls/live"),
		OutputDir:       config.GetEnv("HLS_CURRENT", "/var/www/hls/current"),
		StatusFile:      config.GetEnv("STATUS_FILE", "/var/www/radio/data/status.json"),
		PlaylistWindow:  config.GetEnvInt("PLAYLIST_WINDOW", relay.DefaultPlaylistWindow),
		RetentionWindow: config.GetEnvInt("MAX_SEGMENTS", relay.DefaultRetentionWindow),
		Interval:        config.GetEnvDuration("POLL_INTERVAL", relay.DefaultInterval),
	}

	if err := durable.EnsureDirs(cfg.OutputDir, filepath.Dir(stateFile), filepath.Dir(cfg.StatusFile)); err != nil {
		log.Error("cannot prepare relay directories", "error", err)
		os.Exit(1)
	}

	met := metrics.NewRelay()
	rl, err := relay.New(cfg, relay.NewFileStateStore(stateFile), log, met)
	if err != nil {
		log.Error("invalid relay configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr != "" {
		healthy := func() bool { return rl.State() == services.Running }
		router := server.NewRouter(log, met.Metrics, healthy, nil)
		router.Get("/status", relay.StatusHandler(cfg.StatusFile, log))
		go func() {
			if err := server.Run(ctx, metricsAddr, router, log); err != nil {
				log.Error("ops server error", "error", err)
			}
		}()
	}

	if err := services.StartAndAwaitRunning(ctx, rl); err != nil {
		log.Error("relay failed to start", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	cancel()

	if err := services.StopAndAwaitTerminated(context.Background(), rl); err != nil {
		log.Error("relay stop error", "error", err)
		os.Exit(1)
	}
	log.Info("relay stopped")
}
