package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/ginasoft/BotGastos/internal/daemon"
	"github.com/ginasoft/BotGastos/internal/plugins"
	"github.com/ginasoft/BotGastos/pkg/client"
	"github.com/ginasoft/BotGastos/pkg/config"
	"github.com/ginasoft/BotGastos/pkg/rules"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, credentials and ledger connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context())
		},
	}
}

// runStatus checks the configuration and authentication status.
func runStatus(ctx context.Context) error {
	fmt.Println("=== BotGastos Status ===")
	fmt.Println()

	allGood := true

	cfg := checkConfig(&allGood)
	if cfg == nil {
		printFinalStatus(false)
		return nil
	}

	checkRules(cfg, &allGood)

	registry, err := plugins.Default()
	if err != nil {
		return fmt.Errorf("registering plugins: %w", err)
	}
	scopes, err := daemon.New(registry, nil, logger).Scopes(cfg)
	if err != nil {
		return err
	}

	credentialsOK := true
	if len(scopes) > 0 {
		credentialsOK = checkCredentials(cfg, &allGood)
	}

	if allGood && credentialsOK {
		checkLedger(ctx, registry, cfg, &allGood)
	}

	printFinalStatus(allGood)

	return nil
}

func checkConfig(allGood *bool) *config.Config {
	source := "environment"
	if configPath != "" {
		source = configPath
	}
	fmt.Printf("Config (%s): ", source)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return nil
	}
	fmt.Printf("✓ ledger=%s\n", cfg.Ledger)
	return cfg
}

func checkRules(cfg *config.Config, allGood *bool) {
	if cfg.RulesFile == "" {
		fmt.Print("Rules (built-in): ")
	} else {
		fmt.Printf("Rules (%s): ", cfg.RulesFile)
	}

	set, err := rules.Load(cfg.RulesFile)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Printf("✓ %d categories, %d currencies, %d payment methods\n",
		len(set.Categories().Entries), len(set.Currencies().Entries), len(set.PaymentMethods().Entries))
}

func checkCredentials(cfg *config.Config, allGood *bool) bool {
	if cfg.ServiceAccountFile != "" {
		fmt.Printf("Service account (%s): ", cfg.ServiceAccountFile)
		if _, err := os.Stat(cfg.ServiceAccountFile); err != nil {
			fmt.Println("✗ Not found")
			*allGood = false
			return false
		}
		fmt.Println("✓ Found")
		return true
	}

	fmt.Printf("Credentials file (%s): ", cfg.ClientSecretFile)
	if _, err := os.Stat(cfg.ClientSecretFile); os.IsNotExist(err) {
		fmt.Println("✗ Not found")
		*allGood = false
	} else {
		fmt.Println("✓ Found")
	}

	fmt.Printf("OAuth token (%s): ", cfg.TokenFile)
	token, err := checkToken(cfg.TokenFile)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return false
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Println("⚠ Expired (will refresh on next run)")
	} else {
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return true
}

func checkToken(tokenPath string) (*oauth2.Token, error) {
	if _, err := os.Stat(tokenPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("not found (run 'botgastos setup')")
	}
	token, err := client.LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("invalid format")
	}
	return token, nil
}

func checkLedger(ctx context.Context, registry *plugins.Registry, cfg *config.Config, allGood *bool) {
	fmt.Println()
	fmt.Printf("Ledger (%s): ", cfg.Ledger)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, err := daemon.New(registry, nil, logger).Build(ctx, cfg)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("closing ledger", "error", err)
	}
	fmt.Println("✓ Connected")
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'botgastos serve' to start the API.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'botgastos status' again.")
	}
}
