package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginasoft/BotGastos/internal/daemon"
	"github.com/ginasoft/BotGastos/internal/plugins"
	"github.com/ginasoft/BotGastos/pkg/client"
	"github.com/ginasoft/BotGastos/pkg/config"
)

func setupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize access to Google Sheets and Gmail and cache the OAuth token",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Read(configPath)
			if err != nil {
				return err
			}
			return runSetup(cfg, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard the cached token and authenticate again")

	return cmd
}

// runSetup handles the OAuth setup flow.
func runSetup(cfg *config.Config, force bool) error {
	fmt.Println("=== BotGastos Setup ===")
	fmt.Println()

	registry, err := plugins.Default()
	if err != nil {
		return fmt.Errorf("registering plugins: %w", err)
	}
	scopes, err := daemon.New(registry, nil, logger).Scopes(cfg)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		fmt.Printf("The %q ledger needs no Google authorization and the email input is off. Nothing to do.\n", cfg.Ledger)
		return nil
	}
	if cfg.ServiceAccountFile != "" {
		fmt.Printf("Using service account %s; no interactive authorization needed.\n", cfg.ServiceAccountFile)
		fmt.Println("Share the spreadsheet with the service account's client_email.")
		return nil
	}

	// Check if credentials file exists
	if _, err := os.Stat(cfg.ClientSecretFile); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", cfg.ClientSecretFile, cfg.ClientSecretFile)
	}

	// Check if already authenticated
	if !force {
		if _, err := os.Stat(cfg.TokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", cfg.TokenFile)
			fmt.Println()
			fmt.Println("To re-authenticate, run: botgastos setup --force")
			return nil
		}
	}

	// Remove existing token if force flag is set
	if force {
		if err := os.Remove(cfg.TokenFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	fmt.Printf("  - %s\n", strings.Join(scopes, "\n  - "))
	fmt.Println()
	fmt.Println("Starting authentication...")
	fmt.Println()

	// Trigger OAuth flow by creating client
	if _, err := client.New(cfg.ClientSecretFile, cfg.TokenFile, scopes...); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", cfg.TokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set GSHEETS_ID (or GSHEETS_TITLE to create a new spreadsheet)")
	fmt.Println("  2. Run 'botgastos serve' or 'botgastos chat'")
	fmt.Println()

	return nil
}
