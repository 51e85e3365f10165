// Package csv implements a Ledger that appends to two CSV files in a directory.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// File names inside Config.Dir.
const (
	SummaryFile = "gastos.csv"
	DetailFile  = "detalle_super.csv"
)

// Header rows written to new files.
var (
	SummaryHeader = []string{"Fecha", "Usuario", "Tipo", "Monto", "Categoría", "Moneda", "Medio de pago", "Recurrente", "Comentario"}
	DetailHeader  = []string{"Fecha", "Usuario", "Producto", "Cantidad", "Precio unitario", "Precio"}
)

// Config holds configuration for the CSV ledger.
type Config struct {
	// Dir is created if it does not exist.
	Dir string
}

type sheet struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

func openSheet(path string, header []string) (*sheet, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	s := &sheet{path: path, file: file, writer: csv.NewWriter(file)}

	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("stat csv file: %w", err), file.Close())
	}
	if stat.Size() == 0 {
		if err := s.write([][]string{header}); err != nil {
			return nil, errors.Join(fmt.Errorf("writing headers: %w", err), file.Close())
		}
	}
	return s, nil
}

func (s *sheet) write(rows [][]string) error {
	if err := s.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv records to %s: %w", s.path, err)
	}
	return nil
}

// Ledger appends summary and detail rows to CSV files.
type Ledger struct {
	mu      sync.Mutex
	summary *sheet
	detail  *sheet
	logger  *slog.Logger
}

// New opens (or creates) both CSV files in cfg.Dir.
func New(cfg Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating csv directory: %w", err)
	}

	summary, err := openSheet(filepath.Join(cfg.Dir, SummaryFile), SummaryHeader)
	if err != nil {
		return nil, err
	}
	detail, err := openSheet(filepath.Join(cfg.Dir, DetailFile), DetailHeader)
	if err != nil {
		return nil, errors.Join(err, summary.file.Close())
	}

	l := &Ledger{
		summary: summary,
		detail:  detail,
		logger:  logger.With("component", "csv_ledger"),
	}
	l.logger.Info("csv ledger initialized", "summary", summary.path, "detail", detail.path)
	return l, nil
}

// AppendSummary implements api.Ledger.
func (l *Ledger) AppendSummary(ctx context.Context, record api.ExpenseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.summary.write([][]string{record.Row()}); err != nil {
		return err
	}
	l.logger.Debug("wrote summary row", "record_id", record.ID)
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
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Row())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.detail.write(rows); err != nil {
		return err
	}
	l.logger.Debug("wrote detail rows", "count", len(rows))
	return nil
}

// Close closes both files.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, s := range []*sheet{l.summary, l.detail} {
		s.writer.Flush()
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing csv file %s: %w", s.path, err))
		}
	}
	l.logger.Info("csv ledger closed")
	return errors.Join(errs...)
}
