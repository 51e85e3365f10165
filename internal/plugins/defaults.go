package plugins

import (
	csvplugin "github.com/ginasoft/BotGastos/pkg/plugins/ledgers/csv"
	jsonplugin "github.com/ginasoft/BotGastos/pkg/plugins/ledgers/json"
	memoryplugin "github.com/ginasoft/BotGastos/pkg/plugins/ledgers/memory"
	postgresplugin "github.com/ginasoft/BotGastos/pkg/plugins/ledgers/postgres"
	sheetsplugin "github.com/ginasoft/BotGastos/pkg/plugins/ledgers/sheets"
)

// Default returns a registry holding every built-in ledger plugin.
func Default() (*Registry, error) {
	r := NewRegistry()
	for _, p := range []LedgerPlugin{
		&sheetsplugin.Plugin{},
		&postgresplugin.Plugin{},
		&csvplugin.Plugin{},
		&jsonplugin.Plugin{},
		&memoryplugin.Plugin{},
	} {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}
