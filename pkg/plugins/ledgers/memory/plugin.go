// Package memory provides a plugin wrapper for the in-memory ledger.
package memory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	memledger "github.com/ginasoft/BotGastos/pkg/ledger/memory"
)

// Plugin implements the LedgerPlugin interface for the in-memory ledger.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.LedgerMemory
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep confirmed expenses in memory (lost on exit)"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// NewLedger creates a new in-memory ledger.
func (p *Plugin) NewLedger(_ context.Context, _ *http.Client, _ *config.Config, logger *slog.Logger) (api.Ledger, error) {
	return memledger.New(logger), nil
}
