// Package json implements a Ledger that keeps every confirmed expense in a single
// JSON document.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// Document is the on-disk layout.
type Document struct {
	Expenses []api.ExpenseRecord `json:"expenses"`
	Items    []api.LineItem      `json:"items"`
}

// Config holds configuration for the JSON ledger.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
}

// Ledger writes confirmed expenses to a JSON file.
type Ledger struct {
	filePath string
	doc      Document
	mu       sync.Mutex
	logger   *slog.Logger
}

// New creates a new JSON ledger, loading the existing document if there is one.
func New(cfg Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o750); err != nil {
		return nil, fmt.Errorf("creating json directory: %w", err)
	}

	l := &Ledger{
		filePath: cfg.FilePath,
		logger:   logger.With("component", "json_ledger"),
	}

	if err := l.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.FilePath, err)
	}

	l.logger.Info("json ledger initialized", "file", cfg.FilePath, "existing_count", len(l.doc.Expenses))
	return l, nil
}

// loadExisting loads the document from the JSON file if it exists.
func (l *Ledger) loadExisting() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &l.doc)
}

// AppendSummary implements api.Ledger. A record whose ID is already present is
// not written twice.
func (l *Ledger) AppendSummary(ctx context.Context, record api.ExpenseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.doc.Expenses {
		if record.ID != "" && existing.ID == record.ID {
			return nil
		}
	}

	next := l.doc
	next.Expenses = append(next.Expenses[:len(next.Expenses):len(next.Expenses)], record)
	if err := l.save(next); err != nil {
		return err
	}
	l.logger.Debug("wrote expense", "record_id", record.ID, "total_count", len(l.doc.Expenses))
	return nil
}

// AppendDetails implements api.Ledger.
func (l *Ledger) AppendDetails(ctx context.Context, items []api.LineItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.doc
	next.Items = append(next.Items[:len(next.Items):len(next.Items)], items...)
	if err := l.save(next); err != nil {
		return err
	}
	l.logger.Debug("wrote items", "batch_count", len(items), "total_count", len(l.doc.Items))
	return nil
}

// save rewrites the whole file and adopts doc only once it is on disk.
func (l *Ledger) save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.filePath), filepath.Base(l.filePath)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.filePath); err != nil {
		return fmt.Errorf("replacing json file: %w", err)
	}

	l.doc = doc
	return nil
}

// ExpenseCount returns the number of expenses written.
func (l *Ledger) ExpenseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.doc.Expenses)
}
