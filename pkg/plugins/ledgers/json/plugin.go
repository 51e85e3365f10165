// Package json provides a plugin wrapper for the JSON ledger.
package json

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	jsonledger "github.com/ginasoft/BotGastos/pkg/ledger/json"
)

// Plugin implements the LedgerPlugin interface for a JSON file.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.LedgerJSON
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep confirmed expenses and receipt lines in one JSON document"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// NewLedger creates a new JSON ledger.
func (p *Plugin) NewLedger(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error) {
	return jsonledger.New(jsonledger.Config{FilePath: cfg.JSONFile}, logger)
}
