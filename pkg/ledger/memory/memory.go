// Package memory provides an in-process ledger, used by the chat command and tests.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// Ledger keeps appended rows in memory.
type Ledger struct {
	mu        sync.Mutex
	summaries []api.ExpenseRecord
	details   []api.LineItem
	err       error
	logger    *slog.Logger
}

// New creates an empty in-memory ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger.With("component", "memory_ledger")}
}

// AppendSummary implements api.Ledger.
func (l *Ledger) AppendSummary(ctx context.Context, record api.ExpenseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.summaries = append(l.summaries, record)
	l.logger.Debug("summary row appended", "record_id", record.ID, "rows", len(l.summaries))
	return nil
}

// AppendDetails implements api.Ledger.
func (l *Ledger) AppendDetails(ctx context.Context, items []api.LineItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.details = append(l.details, items...)
	l.logger.Debug("detail rows appended", "count", len(items), "rows", len(l.details))
	return nil
}

// SetErr makes every following append fail with err. A nil err restores normal operation.
func (l *Ledger) SetErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Summaries returns a copy of the appended summary rows.
func (l *Ledger) Summaries() []api.ExpenseRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]api.ExpenseRecord(nil), l.summaries...)
}

// Details returns a copy of the appended detail rows.
func (l *Ledger) Details() []api.LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]api.LineItem(nil), l.details...)
}
