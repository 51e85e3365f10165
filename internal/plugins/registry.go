// Package plugins provides a registry of ledger plugins.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
)

// LedgerPlugin defines the interface for ledger plugins.
type LedgerPlugin interface {
	// Name returns the plugin name, matching BOTGASTOS_LEDGER (e.g. "sheets", "csv").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewLedger creates a ledger from the application configuration. httpClient is nil
	// when the plugin requires no scopes.
	NewLedger(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error)
}

// Registry manages available ledger plugins.
type Registry struct {
	ledgers map[string]LedgerPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[string]LedgerPlugin)}
}

// Register registers a ledger plugin.
func (r *Registry) Register(plugin LedgerPlugin) error {
	name := plugin.Name()
	if _, exists := r.ledgers[name]; exists {
		return fmt.Errorf("ledger plugin %q already registered", name)
	}
	r.ledgers[name] = plugin
	return nil
}

// Get returns a ledger plugin by name.
func (r *Registry) Get(name string) (LedgerPlugin, error) {
	plugin, exists := r.ledgers[name]
	if !exists {
		return nil, fmt.Errorf("ledger plugin %q not found", name)
	}
	return plugin, nil
}

// List returns all registered plugins ordered by name.
func (r *Registry) List() []LedgerPlugin {
	plugins := make([]LedgerPlugin, 0, len(r.ledgers))
	for _, plugin := range r.ledgers {
		plugins = append(plugins, plugin)
	}
	slices.SortFunc(plugins, func(a, b LedgerPlugin) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return plugins
}

// Scopes returns the OAuth scopes required by the named plugin.
func (r *Registry) Scopes(name string) ([]string, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return slices.Compact(slices.Sorted(slices.Values(plugin.RequiredScopes()))), nil
}

// Create creates a ledger instance from a plugin.
func (r *Registry) Create(ctx context.Context, name string, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Ledger, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewLedger(ctx, httpClient, cfg, logger)
}

// Close releases whatever resources ledger holds.
func Close(ledger api.Ledger) error {
	switch c := ledger.(type) {
	case interface{ Close() error }:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}
