// Package postgres provides a PostgreSQL ledger for confirmed expenses.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ginasoft/BotGastos/pkg/api"
)

//go:embed 001_create_expenses.sql
var migrationSQL string

// Config holds the PostgreSQL ledger configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN, when set, is used instead of the individual connection fields.
	DSN string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// ConnString returns the connection string for cfg.
func (cfg Config) ConnString() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// Ledger writes summary and detail rows to PostgreSQL. Summaries are keyed by record
// ID and items by (record ID, position), so a repeated append is a no-op.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and runs the embedded migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 5
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	l := &Ledger{
		pool:   pool,
		logger: logger.With("component", "postgres_ledger"),
	}
	l.logger.Info("connected to PostgreSQL", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)

	if err := l.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

func (l *Ledger) runMigrations(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	l.logger.Info("migrations completed successfully")
	return nil
}

// AppendSummary implements api.Ledger.
func (l *Ledger) AppendSummary(ctx context.Context, record api.ExpenseRecord) error {
	if !record.Amount.Valid {
		return api.ErrNoAmount
	}

	tag, err := l.pool.Exec(ctx, `
		INSERT INTO expense_summaries (
			id, recorded_at, user_name, channel, amount, category,
			currency, payment_method, recurring, comment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		record.ID,
		record.Timestamp,
		record.UserName,
		record.Channel.Label(),
		record.Amount.Decimal.StringFixed(2),
		record.Category,
		record.Currency,
		record.PaymentMethod,
		record.Recurring,
		record.Comment,
	)
	if err != nil {
		return fmt.Errorf("inserting expense summary: %w", err)
	}

	l.logger.Info("wrote expense summary", "record_id", record.ID, "inserted", tag.RowsAffected())
	return nil
}

// AppendDetails implements api.Ledger. The items are inserted in one transaction.
func (l *Ledger) AppendDetails(ctx context.Context, items []api.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Items without a record ID still need a unique key.
	fallbackID := uuid.NewString()

	batch := &pgx.Batch{}
	for i, item := range items {
		recordID := item.RecordID
		if recordID == "" {
			recordID = fallbackID
		}
		batch.Queue(`
			INSERT INTO expense_items (record_id, position, recorded_at, user_name, product, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (record_id, position) DO NOTHING
		`,
			recordID,
			i,
			item.Timestamp,
			item.UserName,
			item.Product,
			item.Price.StringFixed(2),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting expense item %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	l.logger.Info("wrote expense items", "count", len(items), "record_id", items[0].RecordID)
	return nil
}

// Close closes the database connection pool.
func (l *Ledger) Close() {
	if l.pool != nil {
		l.pool.Close()
		l.logger.Info("closed PostgreSQL connection pool")
	}
}
