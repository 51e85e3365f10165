// Package csv provides a plugin wrapper for the CSV ledger.
package csv

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	csvledger "github.com/ginasoft/BotGastos/pkg/ledger/csv"
)

// Plugin implements the LedgerPlugin interface for CSV files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.LedgerCSV
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Append expenses and receipt lines to two CSV files"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// NewLedger creates a new CSV ledger.
func (p *Plugin) NewLedger(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error) {
	return csvledger.New(csvledger.Config{Dir: cfg.CSVDir}, logger)
}
