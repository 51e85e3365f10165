// Package daemon provides the core daemon runner for BotGastos.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ginasoft/BotGastos/internal/plugins"
	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/classifier"
	"github.com/ginasoft/BotGastos/pkg/client"
	"github.com/ginasoft/BotGastos/pkg/config"
	"github.com/ginasoft/BotGastos/pkg/engine"
	"github.com/ginasoft/BotGastos/pkg/input/gmail"
	"github.com/ginasoft/BotGastos/pkg/rules"
	"github.com/ginasoft/BotGastos/pkg/staging"
	"github.com/ginasoft/BotGastos/pkg/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

// ClientFunc builds the authenticated HTTP client handed to ledger plugins.
type ClientFunc func(ctx context.Context, cfg *config.Config, scopes []string) (*http.Client, error)

// GoogleClient authenticates with the service account when one is configured and
// falls back to the cached OAuth token otherwise.
func GoogleClient(ctx context.Context, cfg *config.Config, scopes []string) (*http.Client, error) {
	if cfg.ServiceAccountFile != "" {
		return client.NewServiceAccount(ctx, cfg.ServiceAccountFile, scopes...)
	}
	return client.New(cfg.ClientSecretFile, cfg.TokenFile, scopes...)
}

// Components are the wired parts of a running bot.
type Components struct {
	Engine *engine.Engine
	Ledger api.Ledger
	// Gmail is nil unless GMAIL_QUERY is set.
	Gmail *gmail.Reader
}

// Close releases the ledger.
func (c *Components) Close() error {
	return plugins.Close(c.Ledger)
}

// Runner manages the bot daemon lifecycle.
type Runner struct {
	registry  *plugins.Registry
	newClient ClientFunc
	logger    *slog.Logger
}

// New creates a new daemon runner. A nil newClient uses GoogleClient.
func New(registry *plugins.Registry, newClient ClientFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if newClient == nil {
		newClient = GoogleClient
	}

	return &Runner{
		registry:  registry,
		newClient: newClient,
		logger:    logger,
	}
}

// Scopes returns the OAuth scopes cfg needs: the ledger's plus Gmail's when the
// email input is enabled.
func (r *Runner) Scopes(cfg *config.Config) ([]string, error) {
	scopes, err := r.registry.Scopes(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	if cfg.GmailQuery != "" {
		scopes = append(scopes, gmailapi.GmailModifyScope)
	}
	return slices.Compact(slices.Sorted(slices.Values(scopes))), nil
}

// Build wires the rules, classifier, staging store, ledger and optional email input.
// The caller must Close the returned components.
func (r *Runner) Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	set, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	scopes, err := r.Scopes(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting required scopes: %w", err)
	}

	var httpClient *http.Client
	if len(scopes) > 0 {
		r.logger.Info("OAuth scopes required", "scopes", scopes)
		httpClient, err = r.newClient(ctx, cfg, scopes)
		if err != nil {
			return nil, fmt.Errorf("creating http client: %w", err)
		}
	}

	ledger, err := r.registry.Create(ctx, cfg.Ledger, httpClient, cfg,
		r.logger.With("component", "ledger", "plugin", cfg.Ledger))
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	c := &Components{
		Engine: engine.New(classifier.New(set), staging.NewStore(r.logger), ledger, r.logger),
		Ledger: ledger,
	}

	if cfg.GmailQuery != "" {
		gcfg := gmail.Config{
			Query:    cfg.GmailQuery,
			User:     api.UserID(cfg.GmailUserID),
			UserName: cfg.GmailUserName,
			Interval: cfg.GmailInterval,
		}
		c.Gmail, err = gmail.New(ctx, httpClient, c.Engine, gcfg, r.logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating gmail input: %w", err), c.Close())
		}
	}

	return c, nil
}

// Serve runs the HTTP API on ln, and the email input when configured, until ctx is
// canceled. It then shuts down gracefully.
func (r *Runner) Serve(ctx context.Context, ln net.Listener, cfg *config.Config) error {
	r.logger.Info("starting botgastos daemon",
		"ledger", cfg.Ledger,
		"addr", ln.Addr().String(),
		"gmail", cfg.GmailQuery != "",
	)

	c, err := r.Build(ctx, cfg)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			r.logger.Error("closing ledger", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gmailDone := make(chan error, 1)
	if c.Gmail != nil {
		go func() {
			gmailDone <- c.Gmail.Run(ctx)
		}()
	} else {
		close(gmailDone)
	}

	srv := &http.Server{
		Handler:           httpapi.New(c.Engine, r.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	r.logger.Info("daemon started")

	var result error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown", "error", err)
		}
	}

	// Stop the email input before the ledger is closed.
	cancel()
	if err := <-gmailDone; err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("gmail input error", "error", err)
	}

	if staged := c.Engine.Staged(); staged > 0 {
		r.logger.Warn("discarding unconfirmed expenses", "count", staged)
	}

	r.logger.Info("daemon stopped")
	return result
}

// Run listens on cfg.HTTPAddr and blocks until ctx is canceled or serving fails.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
	}
	return r.Serve(ctx, ln, cfg)
}
