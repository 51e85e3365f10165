// Package sheets provides a plugin wrapper for the Google Sheets ledger.
package sheets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	sheetsledger "github.com/ginasoft/BotGastos/pkg/ledger/sheets"
)

// Plugin implements the LedgerPlugin interface for Google Sheets.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.LedgerSheets
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Append expenses and receipt lines to two tabs of a Google Spreadsheet"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{sheetsapi.SpreadsheetsScope}
}

// NewLedger creates a new Sheets ledger.
func (p *Plugin) NewLedger(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error) {
	if httpClient == nil {
		return nil, errors.New("sheets ledger requires an authenticated http client")
	}
	return sheetsledger.New(ctx, httpClient, sheetsledger.Config{
		SheetTitle:   cfg.GSheetsTitle,
		SheetID:      cfg.GSheetsID,
		SummarySheet: cfg.GSheetsName,
		DetailSheet:  cfg.GSheetsDetailName,
	}, logger)
}
