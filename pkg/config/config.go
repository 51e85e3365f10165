// Package config loads the bot configuration from an optional JSON file and the
// environment. Environment variables take precedence over the file.
package config

import (
	"fmt"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// Supported ledger backends.
const (
	LedgerSheets   = "sheets"
	LedgerPostgres = "postgres"
	LedgerCSV      = "csv"
	LedgerJSON     = "json"
	LedgerMemory   = "memory"
)

// Defaults for optional settings.
const (
	DefaultLedger           = LedgerSheets
	DefaultSheetName        = "Sheet1"
	DefaultDetailSheetName  = "DetalleSuper"
	DefaultClientSecretFile = "data/client_secret.json"
	DefaultTokenFile        = "data/token.json"
	DefaultCSVDir           = "data"
	DefaultJSONFile         = "data/gastos.json"
	DefaultHTTPAddr         = ":8080"
	DefaultPostgresPort     = 5432
	DefaultPostgresSSLMode  = "disable"
)

// Config holds the application configuration.
type Config struct {
	// Ledger selects where confirmed expenses are written.
	// Environment variable: BOTGASTOS_LEDGER
	Ledger string `koanf:"BOTGASTOS_LEDGER"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	// Environment variable: GSHEETS_TITLE
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`

	// GSheetsID is the ID of an existing Google Sheet to use.
	// Environment variable: GSHEETS_ID
	GSheetsID string `koanf:"GSHEETS_ID"`

	// GSheetsName is the tab receiving one summary row per expense.
	// Environment variable: GSHEETS_NAME
	GSheetsName string `koanf:"GSHEETS_NAME"`

	// GSheetsDetailName is the tab receiving receipt lines.
	// Environment variable: GSHEETS_DETAIL_NAME
	GSheetsDetailName string `koanf:"GSHEETS_DETAIL_NAME"`

	// ServiceAccountFile, when set, authenticates with a service account instead of
	// the interactive OAuth flow.
	// Environment variable: GOOGLE_SERVICE_ACCOUNT_FILE
	ServiceAccountFile string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// ClientSecretFile is the OAuth desktop client JSON.
	// Environment variable: GOOGLE_CLIENT_SECRET_FILE
	ClientSecretFile string `koanf:"GOOGLE_CLIENT_SECRET_FILE"`

	// TokenFile caches the OAuth token.
	// Environment variable: GOOGLE_TOKEN_FILE
	TokenFile string `koanf:"GOOGLE_TOKEN_FILE"`

	// CSVDir holds the CSV ledger files.
	// Environment variable: CSV_DIR
	CSVDir string `koanf:"CSV_DIR"`

	// JSONFile is the JSON ledger document.
	// Environment variable: JSON_FILE
	JSONFile string `koanf:"JSON_FILE"`

	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// GmailQuery enables the email input: unread messages matching it are submitted
	// as expenses of GmailUserID.
	// Environment variable: GMAIL_QUERY
	GmailQuery    string        `koanf:"GMAIL_QUERY"`
	GmailUserID   int64         `koanf:"GMAIL_USER_ID"`
	GmailUserName string        `koanf:"GMAIL_USER_NAME"`
	GmailInterval time.Duration `koanf:"GMAIL_INTERVAL"`

	// RulesFile overrides the built-in classification rules.
	// Environment variable: RULES_FILE
	RulesFile string `koanf:"RULES_FILE"`

	// HTTPAddr is the listen address of the HTTP API.
	// Environment variable: HTTP_ADDR
	HTTPAddr string `koanf:"HTTP_ADDR"`
}

// Load reads the configuration with Read and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads the JSON file at path, if any, then the environment, and applies
// defaults without validating.
func Read(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// SetDefaults fills empty optional settings.
func (c *Config) SetDefaults() {
	if c.Ledger == "" {
		c.Ledger = DefaultLedger
	}
	if c.GSheetsName == "" {
		c.GSheetsName = DefaultSheetName
	}
	if c.GSheetsDetailName == "" {
		c.GSheetsDetailName = DefaultDetailSheetName
	}
	if c.ClientSecretFile == "" {
		c.ClientSecretFile = DefaultClientSecretFile
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
	if c.CSVDir == "" {
		c.CSVDir = DefaultCSVDir
	}
	if c.JSONFile == "" {
		c.JSONFile = DefaultJSONFile
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.PostgresPort == 0 {
		c.PostgresPort = DefaultPostgresPort
	}
	if c.PostgresSSLMode == "" {
		c.PostgresSSLMode = DefaultPostgresSSLMode
	}
}

// Validate checks that the settings required by the selected ledger are present.
func (c *Config) Validate() error {
	if c.GmailQuery != "" && c.GmailUserID == 0 {
		return fmt.Errorf("%w: GMAIL_USER_ID is required with GMAIL_QUERY", api.ErrInvalidConfig)
	}

	switch c.Ledger {
	case LedgerSheets:
		if c.GSheetsID == "" && c.GSheetsTitle == "" {
			return fmt.Errorf("%w: either GSHEETS_ID or GSHEETS_TITLE is required", api.ErrInvalidConfig)
		}
		if c.GSheetsName == c.GSheetsDetailName {
			return fmt.Errorf("%w: GSHEETS_NAME and GSHEETS_DETAIL_NAME must differ", api.ErrInvalidConfig)
		}
	case LedgerPostgres:
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("%w: POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required", api.ErrInvalidConfig)
		}
	case LedgerCSV, LedgerJSON, LedgerMemory:
	default:
		return fmt.Errorf("%w: unknown ledger %q", api.ErrInvalidConfig, c.Ledger)
	}
	return nil
}
