package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nzgrid/mercury-usage-exporter/internal/tokenstore"
)

var reauthCmd = &cobra.Command{
	Use:   "reauth",
	Short: "Store a new refresh token",
	Long: `Reads a refresh token from stdin and merges it into the persisted
credential record, preserving any still-valid access token. Run this once
after onboarding and again whenever the provider invalidates the stored
refresh token.

The token is read from stdin rather than taken as an argument so it does
not land in shell history.`,
	RunE: runReauth,
}

func init() {
	rootCmd.AddCommand(reauthCmd)
}

func runReauth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, "Refresh token: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading refresh token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return fmt.Errorf("refresh token must not be empty")
	}

	store := tokenstore.New(cfg.TokenStorePath)
	if err := store.MergeRefreshToken(token); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}

	fmt.Println("Refresh token saved")
	return nil
}
