// Package client provides OAuth2 client setup for Google APIs.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// New creates an HTTP client with OAuth2 credentials from a desktop client secret file.
// The token is cached at tokenFile; without one the browser flow is started.
func New(secretFilePath, tokenFile string, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(secretFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	return NewFromJSON(b, tokenFile, scope...)
}

// NewFromJSON creates an HTTP client with OAuth2 credentials from JSON content.
func NewFromJSON(secretJSON []byte, tokenFile string, scope ...string) (*http.Client, error) {
	config, err := google.ConfigFromJSON(secretJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	ctx := context.Background()
	tok, err := LoadToken(tokenFile)
	if err != nil {
		slog.Info("no existing token found, initiating OAuth flow")
		tok, err = Authorize(ctx, config, os.Stdin, os.Stdout)
		if err != nil {
			return nil, fmt.Errorf("getting oauth token: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			slog.Error("failed to save token", "error", err)
		}
	}

	src := &cachingTokenSource{
		base: config.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// NewServiceAccount creates an HTTP client authenticated as a service account.
// The spreadsheet must be shared with the account's email.
func NewServiceAccount(ctx context.Context, keyFilePath string, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	slog.Info("using service account credentials", "email", config.Email)
	return config.Client(ctx), nil
}

// cachingTokenSource writes every refreshed token back to the token file so a
// restart does not have to refresh again.
type cachingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			slog.Warn("failed to cache refreshed token", "error", err)
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}

// LoadToken reads a cached OAuth token.
func LoadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	slog.Debug("saving credential file", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
