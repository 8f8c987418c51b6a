package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nzgrid/mercury-usage-exporter/internal/clock"
	"github.com/nzgrid/mercury-usage-exporter/internal/collector"
	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/history"
	"github.com/nzgrid/mercury-usage-exporter/internal/publisher"
	"github.com/nzgrid/mercury-usage-exporter/internal/server"
	"github.com/nzgrid/mercury-usage-exporter/internal/tokenstore"
	"github.com/nzgrid/mercury-usage-exporter/internal/version"
)

// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling daemon and metrics server",
	Long: `Runs the polling loop at the configured interval, serves Prometheus
metrics over HTTP, and (if enabled) publishes sensor updates to Home
Assistant via MQTT.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	log.Info("Mercury usage exporter starting",
		"version", version.Version,
		"config_path", cfgFile,
		"poll_minutes", cfg.PollMinutes,
		"reporting_delay_days", cfg.ReportingDelay(),
		"timezone", cfg.Timezone,
		"http_port", cfg.HTTPPort)

	store := tokenstore.New(cfg.TokenStorePath)
	coord := coordinator.New(cfg, log, store, clock.RealClock{})

	archive, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Error("Failed to open usage history", "error", err)
		return err
	}
	defer archive.Close()
	coord.SetArchive(archive)

	usageCollector := collector.NewUsageCollector(coord)
	if err := prometheus.Register(usageCollector); err != nil {
		log.Error("Failed to register collector", "error", err)
		return err
	}
	if err := prometheus.Register(prometheus.NewGoCollector()); err != nil {
		log.Warn("Failed to register Go collector", "error", err)
	}
	if err := prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		log.Warn("Failed to register process collector", "error", err)
	}

	if cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT, log)
		if err != nil {
			log.Error("Failed to connect MQTT publisher", "error", err)
			return err
		}
		defer pub.Close()
		if err := pub.PublishDiscovery(); err != nil {
			log.Warn("Failed to publish MQTT discovery configs", "error", err)
		}
		coord.Subscribe(func(snap coordinator.Snapshot) {
			cumEnergy, cumCost := coord.Cumulative()
			if err := pub.PublishSnapshot(snap, cumEnergy, cumCost); err != nil {
				log.Warn("Failed to publish snapshot to MQTT", "error", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First poll before the interval starts, so /ready reflects reality
	// quickly. Missing credentials are fatal; other failures wait for the
	// next scheduled cycle.
	if err := coord.Poll(ctx); err != nil {
		if errors.Is(err, coordinator.ErrNoCredentials) {
			log.Error("No credentials available", "error", err)
			return err
		}
		log.Warn("Initial poll failed, will retry on the next interval", "error", err)
	}

	go func() {
		ticker := time.NewTicker(cfg.PollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping poll loop")
				return
			case <-ticker.C:
				// Poll runs to completion before the next tick is read,
				// so cycles never overlap.
				if err := coord.Poll(ctx); err != nil && errors.Is(err, coordinator.ErrNoCredentials) {
					log.Error("Credentials lost, reauthentication required")
				}
			}
		}
	}()

	srv := server.NewServer(cfg, coord, log)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", "error", err)
		return err

	case sig := <-shutdown:
		log.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during server shutdown", "error", err)
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
