package main

import (
	"github.com/spf13/cobra"

	"github.com/nzgrid/mercury-usage-exporter/internal/config"
	"github.com/nzgrid/mercury-usage-exporter/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mercury-exporter",
	Short: "Export Mercury NZ electricity usage as metrics",
	Long: `mercury-exporter polls the Mercury NZ self-service API for hourly
electricity usage and cost, manages the OAuth refresh-token lifecycle, and
exposes daily and cumulative metrics via Prometheus and (optionally) Home
Assistant MQTT discovery.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// loadConfig loads the configuration file given on the command line
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the process logger from config
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg.LogLevel)
}
