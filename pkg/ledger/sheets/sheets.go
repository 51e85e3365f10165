// Package sheets implements a Ledger backed by two tabs of a Google Spreadsheet:
// one summary row per confirmed expense and one detail row per receipt line.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// Defaults applied when Config leaves them empty.
const (
	DefaultSummarySheet = "Sheet1"
	DefaultDetailSheet  = "DetalleSuper"
	DefaultRetryDelay   = 10 * time.Second
	DefaultAttempts     = 3
)

// Header rows written to freshly created tabs.
var (
	SummaryHeader = []any{"Fecha", "Usuario", "Tipo", "Monto", "Categoría", "Moneda", "Medio de pago", "Recurrente", "Comentario"}
	DetailHeader  = []any{"Fecha", "Usuario", "Producto", "Cantidad", "Precio unitario", "Precio"}
)

// Config holds configuration for the Sheets ledger.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SummarySheet is the tab receiving one row per expense.
	SummarySheet string
	// DetailSheet is the tab receiving receipt lines.
	DetailSheet string
	// RetryDelay is the wait between attempts after a rate limit response.
	RetryDelay time.Duration
	// Attempts bounds the tries per append, including the first.
	Attempts uint
	// ClientOptions are passed to the Sheets service after the HTTP client.
	ClientOptions []option.ClientOption
}

func (c *Config) setDefaults() {
	if c.SummarySheet == "" {
		c.SummarySheet = DefaultSummarySheet
	}
	if c.DetailSheet == "" {
		c.DetailSheet = DefaultDetailSheet
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
}

// Ledger appends rows to a Google Spreadsheet.
type Ledger struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	cfg         Config
	logger      *slog.Logger
}

// New creates a Sheets ledger, opening the configured spreadsheet or creating one with
// both tabs and their headers.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.ClientOptions...)
	client, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	l := &Ledger{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "sheets_ledger"),
	}

	spreadsheet, err := l.initSpreadsheet(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	l.spreadsheet = spreadsheet

	l.logger.Info("sheets ledger initialized",
		"spreadsheet_id", spreadsheet.SpreadsheetId,
		"summary_sheet", cfg.SummarySheet,
		"detail_sheet", cfg.DetailSheet,
	)
	return l, nil
}

func (l *Ledger) initSpreadsheet(ctx context.Context) (*sheets.Spreadsheet, error) {
	if l.cfg.SheetID != "" {
		spreadsheet, err := l.client.Spreadsheets.Get(l.cfg.SheetID).Context(ctx).Do()
		if err == nil {
			l.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", l.cfg.SheetID)
			if err := l.ensureTabs(ctx, spreadsheet); err != nil {
				return nil, err
			}
			return spreadsheet, nil
		}
		l.logger.Warn("failed to get spreadsheet, will create new one", "id", l.cfg.SheetID, "error", err)
	}

	spreadsheet, err := l.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: l.cfg.SheetTitle},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: l.cfg.SummarySheet}},
			{Properties: &sheets.SheetProperties{Title: l.cfg.DetailSheet}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}
	l.logger.Info("created new spreadsheet", "title", l.cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	if err := l.writeHeader(ctx, spreadsheet.SpreadsheetId, l.cfg.SummarySheet, SummaryHeader); err != nil {
		return nil, err
	}
	if err := l.writeHeader(ctx, spreadsheet.SpreadsheetId, l.cfg.DetailSheet, DetailHeader); err != nil {
		return nil, err
	}
	return spreadsheet, nil
}

// ensureTabs adds whichever of the two tabs is missing from an existing spreadsheet.
func (l *Ledger) ensureTabs(ctx context.Context, spreadsheet *sheets.Spreadsheet) error {
	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil {
			existing[s.Properties.Title] = true
		}
	}

	tabs := []struct {
		name   string
		header []any
	}{
		{l.cfg.SummarySheet, SummaryHeader},
		{l.cfg.DetailSheet, DetailHeader},
	}
	for _, tab := range tabs {
		if existing[tab.name] {
			continue
		}
		_, err := l.client.Spreadsheets.BatchUpdate(spreadsheet.SpreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: tab.name},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("adding sheet %s: %w", tab.name, err)
		}
		l.logger.Info("added missing sheet", "sheet", tab.name)

		if err := l.writeHeader(ctx, spreadsheet.SpreadsheetId, tab.name, tab.header); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) writeHeader(ctx context.Context, spreadsheetID, sheetName string, header []any) error {
	headerRange := fmt.Sprintf("%s!A1", sheetName)
	_, err := l.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s headers: %w", sheetName, err)
	}
	return nil
}

// AppendSummary implements api.Ledger.
func (l *Ledger) AppendSummary(ctx context.Context, record api.ExpenseRecord) error {
	if err := l.append(ctx, l.cfg.SummarySheet, [][]any{toValues(record.Row())}); err != nil {
		return fmt.Errorf("appending summary to sheet: %w", err)
	}
	l.logger.Info("wrote summary row", "record_id", record.ID, "amount", record.FormattedAmount())
	return nil
}

// AppendDetails implements api.Ledger. All items go in a single API call.
func (l *Ledger) AppendDetails(ctx context.Context, items []api.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	values := make([][]any, 0, len(items))
	for _, item := range items {
		values = append(values, toValues(item.Row()))
	}
	if err := l.append(ctx, l.cfg.DetailSheet, values); err != nil {
		return fmt.Errorf("appending details to sheet: %w", err)
	}
	l.logger.Info("wrote detail rows", "count", len(items), "first_product", items[0].Product)
	return nil
}

func (l *Ledger) append(ctx context.Context, sheetName string, values [][]any) error {
	writeRange := fmt.Sprintf("%s!A1", sheetName)
	req := &sheets.ValueRange{Values: values}

	return retry.Do(
		func() error {
			_, err := l.client.Spreadsheets.Values.Append(l.spreadsheet.SpreadsheetId, writeRange, req).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				l.logger.Warn("rate limited, will retry", "sheet", sheetName, "error", err)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(l.cfg.Attempts),
		retry.Delay(l.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (l *Ledger) SpreadsheetID() string {
	if l.spreadsheet == nil {
		return ""
	}
	return l.spreadsheet.SpreadsheetId
}

func toValues(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
