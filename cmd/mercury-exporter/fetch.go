package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nzgrid/mercury-usage-exporter/internal/clock"
	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/history"
	"github.com/nzgrid/mercury-usage-exporter/internal/tokenstore"
)

var fetchNoArchive bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run a single poll cycle and print the derived metrics",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchNoArchive, "no-archive", false, "skip writing the fetched data to the usage history")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	store := tokenstore.New(cfg.TokenStorePath)
	coord := coordinator.New(cfg, log, store, clock.RealClock{})

	if !fetchNoArchive {
		archive, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening usage history: %w", err)
		}
		defer archive.Close()
		coord.SetArchive(archive)
	}

	if err := coord.Poll(context.Background()); err != nil {
		return err
	}

	snap, _ := coord.Snapshot()
	peak := derive.PeakAndAverage(snap.Series)
	rates := derive.RateStats(snap.Series)
	cumEnergy, cumCost := coord.Cumulative()

	fmt.Printf("Window:            %s to %s (exclusive)\n", snap.WindowStart, snap.WindowEnd)
	fmt.Printf("Measurement date:  %s\n", snap.MeasurementDate)
	fmt.Printf("Hours reported:    %d\n", len(snap.Series))
	fmt.Printf("Daily consumption: %.3f kWh\n", derive.DailyTotal(snap.Series, derive.Consumption))
	fmt.Printf("Daily cost:        %.2f NZD\n", derive.DailyTotal(snap.Series, derive.Cost))
	if peak.PeakHour >= 0 {
		fmt.Printf("Peak hour:         %d (%.3f kWh)\n", peak.PeakHour, peak.PeakValue)
	}
	fmt.Printf("Average hourly:    %.3f kWh\n", peak.Average)
	fmt.Printf("Average rate:      %.4f NZD/kWh\n", rates.AverageRate)
	fmt.Printf("Cumulative:        %.3f kWh, %.2f NZD\n", cumEnergy.Value, cumCost.Value)

	return nil
}
