package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nzgrid/mercury-usage-exporter/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived daily usage",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "maximum number of days to list (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("opening usage history: %w", err)
	}
	defer db.Close()

	days, err := db.ListDays(historyLimit)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		fmt.Println("No archived usage data")
		return nil
	}

	fmt.Printf("%-12s %12s %10s %6s\n", "Date", "kWh", "NZD", "Hours")
	for _, d := range days {
		fmt.Printf("%-12s %12.3f %10.2f %6d\n", d.Day, d.Consumption, d.Cost, d.Hours)
	}

	return nil
}
