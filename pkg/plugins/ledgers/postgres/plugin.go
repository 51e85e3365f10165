// Package postgres provides a plugin wrapper for the PostgreSQL ledger.
package postgres

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	pgledger "github.com/ginasoft/BotGastos/pkg/ledger/postgres"
)

// Plugin implements the LedgerPlugin interface for PostgreSQL.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.LedgerPostgres
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Store expenses and receipt lines in PostgreSQL"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
// PostgreSQL ledger doesn't require OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// NewLedger creates a new PostgreSQL ledger.
func (p *Plugin) NewLedger(ctx context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error) {
	return pgledger.New(ctx, pgledger.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		Database: cfg.PostgresDB,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		SSLMode:  cfg.PostgresSSLMode,
	}, logger)
}
