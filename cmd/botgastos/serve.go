package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginasoft/BotGastos/internal/daemon"
	"github.com/ginasoft/BotGastos/internal/plugins"
	"github.com/ginasoft/BotGastos/pkg/config"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API that chat front-ends talk to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			registry, err := plugins.Default()
			if err != nil {
				return fmt.Errorf("registering plugins: %w", err)
			}

			logger.Info("plugins registered", "ledgers", len(registry.List()))
			logger.Info("configuration loaded", "ledger", cfg.Ledger, "addr", cfg.HTTPAddr)

			return daemon.New(registry, nil, logger).Run(cmd.Context(), cfg)
		},
	}
}
