package client

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	callbackPath = "/callback"
	// authTimeout is how long to wait for the user to finish the consent screen.
	authTimeout = 5 * time.Minute
)

const successPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>BotGastos</title></head>
<body style="font-family: sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0;">
<div style="text-align: center;">
<h1 style="color: #4CAF50;">✓ Autorización completa</h1>
<p>Podés cerrar esta ventana y volver a la terminal.</p>
</div>
</body>
</html>`

type authResult struct {
	code string
	err  error
}

// Authorize runs the installed-app consent flow and returns the resulting token.
// Google redirects to a loopback server on an ephemeral port. On a headless host
// the user can instead paste the code, or the whole redirect URL, into in.
func Authorize(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	state, err := generateState()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("generating state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan authResult, 1)
	mux := http.NewServeMux()
	mux.Handle(callbackPath, callbackHandler(state, results))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(results, authResult{err: err})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(out, "\nOpening browser for Google authentication...\n")
	fmt.Fprintf(out, "If it does not open, visit this URL and paste the code (or the address you land on) here:\n%s\n\n", authURL)

	if err := openBrowser(ctx, authURL); err != nil {
		slog.Warn("failed to open browser automatically", "error", err)
	}
	if in != nil {
		go readPasted(in, state, results)
	}

	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("oauth callback: %w", res.err)
		}
		tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		fmt.Fprintln(out, "Authentication successful!")
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", authTimeout)
	}
}

// callbackHandler validates the redirect from the consent screen and reports the
// authorization code on results.
func callbackHandler(state string, results chan<- authResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, err := codeFromQuery(r.URL.Query(), state)
		if err != nil {
			deliver(results, authResult{err: err})
			http.Error(w, "Authentication failed: "+err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, successPage)
		deliver(results, authResult{code: code})
	})
}

func codeFromQuery(q url.Values, state string) (string, error) {
	if q.Get("state") != state {
		return "", errors.New("invalid state parameter")
	}
	if msg := q.Get("error"); msg != "" {
		return "", fmt.Errorf("%s: %s", msg, q.Get("error_description"))
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("no authorization code received")
	}
	return code, nil
}

// parsePasted accepts either a bare code or the full redirect URL.
func parsePasted(line, state string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	if !strings.Contains(line, "://") {
		return line, nil
	}
	u, err := url.Parse(line)
	if err != nil {
		return "", fmt.Errorf("parsing redirect url: %w", err)
	}
	return codeFromQuery(u.Query(), state)
}

func readPasted(in io.Reader, state string, results chan<- authResult) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		code, err := parsePasted(scanner.Text(), state)
		if err != nil {
			slog.Warn("ignoring pasted input", "error", err)
			continue
		}
		deliver(results, authResult{code: code})
		return
	}
}

// deliver keeps the first result and drops the rest.
func deliver(results chan<- authResult, res authResult) {
	select {
	case results <- res:
	default:
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
