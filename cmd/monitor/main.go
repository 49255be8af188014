package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/dskit/services"

	"radio-relay/internal/monitor"
	"radio-relay/internal/platform/config"
	"radio-relay/internal/platform/durable"
	"radio-relay/internal/platform/logger"
	"radio-relay/internal/platform/metrics"
	"radio-relay/internal/platform/server"
)

func main() {
	_ = config.Load()

	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	metricsAddr := config.GetEnv("METRICS_ADDR", ":9101")

	log := logger.New(logLevel, logFormat)

	cfg := monitor.Config{
		StatURL:  config.GetEnv("RTMP_STAT_URL", "http://rtmp:8089/rtmp_stat"),
		App:      config.GetEnv("RTMP_APP", monitor.DefaultApp),
		ModeFile: config.GetEnv("ACTIVE_FILE", "/run/radio/active"),
		Interval: config.GetEnvDuration("POLL_INTERVAL", monitor.DefaultInterval),
		Timeout:  config.GetEnvDuration("STAT_TIMEOUT", monitor.DefaultTimeout),
	}

	if err := durable.EnsureDir(cfg.ModeFile); err != nil {
		log.Error("cannot prepare mode file directory", "error", err)
		os.Exit(1)
	}

	met := metrics.NewMonitor()
	mon := monitor.New(cfg, log, met)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr != "" {
		healthy := func() bool { return mon.State() == services.Running }
		go func() {
			if err := server.Run(ctx, metricsAddr, server.NewRouter(log, met.Metrics, healthy, nil), log); err != nil {
				log.Error("ops server error", "error", err)
			}
		}()
	}

	if err := services.StartAndAwaitRunning(ctx, mon); err != nil {
		log.Error("monitor failed to start", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	cancel()

	if err := services.StopAndAwaitTerminated(context.Background(), mon); err != nil {
		log.Error("monitor stop error", "error", err)
		os.Exit(1)
	}
	log.Info("monitor stopped")
}
