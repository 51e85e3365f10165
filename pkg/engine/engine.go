// Package engine ties classification, staging and confirmation together and renders
// the messages shown to the user. Transports feed it RawInputs and decisions and relay
// the Replies it returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/classifier"
	"github.com/ginasoft/BotGastos/pkg/extract"
	"github.com/ginasoft/BotGastos/pkg/staging"
)

// ErrUnsupportedChannel is returned by Submit for a channel outside text, audio and photo.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the clock used to timestamp inputs that carry none.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the record ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// Engine is safe for concurrent use by multiple transports.
type Engine struct {
	classifier *classifier.Classifier
	store      *staging.Store
	controller *staging.Controller
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// New creates an engine staging records in store and committing them to ledger.
func New(c *classifier.Classifier, store *staging.Store, ledger api.Ledger, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	e := &Engine{
		classifier: c,
		store:      store,
		controller: staging.NewController(store, ledger, logger),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit interprets a raw input and stages it for confirmation, replacing whatever the
// user had pending. Input without a detectable amount is rejected and stages nothing.
func (e *Engine) Submit(ctx context.Context, in api.RawInput) (Reply, error) {
	if in.Channel == "" {
		in.Channel = api.ChannelText
	}
	if !in.Channel.Valid() {
		return Reply{}, fmt.Errorf("%w: %q", ErrUnsupportedChannel, in.Channel)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = e.now()
	}

	result := e.classifier.Classify(in.Text)
	e.logger.Debug("input classified",
		"user", in.User,
		"text", in.Text,
		"category", result.Category,
		"currency", result.Currency,
		"payment_method", result.PaymentMethod,
	)
	if !result.Amount.Valid {
		e.logger.Info("input rejected, no amount", "user", in.User, "channel", in.Channel)
		return rejected(), nil
	}

	pending := api.PendingTransaction{
		Record: api.ExpenseRecord{
			ID:            e.newID(),
			Timestamp:     in.Timestamp,
			UserName:      in.UserName,
			Channel:       in.Channel,
			Amount:        result.Amount,
			Category:      result.Category,
			Currency:      result.Currency,
			PaymentMethod: result.PaymentMethod,
			Recurring:     result.Recurring,
			Comment:       result.Comment,
		},
		Items:    extract.ExtractItems(in.Text, in.Timestamp, in.UserName),
		StagedAt: e.now(),
	}

	for i := range pending.Items {
		pending.Items[i].RecordID = pending.Record.ID
	}

	if err := e.store.Stage(in.User, pending); err != nil {
		return Reply{}, fmt.Errorf("staging record: %w", err)
	}

	e.logger.Info("expense staged",
		"user", in.User,
		"record_id", pending.Record.ID,
		"channel", in.Channel,
		"amount", pending.Record.Amount.Decimal.String(),
		"category", pending.Record.Category,
		"items", len(pending.Items),
	)
	return prompt(pending), nil
}

// Resolve applies a decision to the user's pending transaction. A ledger failure is
// returned together with a reply asking the user to try again; the transaction stays
// pending.
func (e *Engine) Resolve(ctx context.Context, user api.UserID, d staging.Decision) (Reply, error) {
	outcome, err := e.controller.Resolve(ctx, user, d)
	if err != nil {
		if errors.Is(err, staging.ErrUnknownDecision) {
			return Reply{}, err
		}
		pending, _ := e.store.Pending(user)
		return failed(pending), fmt.Errorf("resolving %s: %w", d, err)
	}

	switch {
	case outcome == staging.OutcomeCommitted:
		return Reply{Kind: KindCommitted, Text: CommittedText}, nil
	case outcome == staging.OutcomeCancelled, d == staging.Cancel:
		// A late cancel tap still reads as cancelled.
		return Reply{Kind: KindCancelled, Text: CancelledText}, nil
	default:
		return Reply{Kind: KindNothing, Text: NothingPendingText}, nil
	}
}

// Handle routes a chat message: a recognized decision word resolves the pending
// transaction, anything else is submitted as a new expense.
func (e *Engine) Handle(ctx context.Context, in api.RawInput) (Reply, error) {
	if d, err := staging.ParseDecision(in.Text); err == nil {
		return e.Resolve(ctx, in.User, d)
	}
	return e.Submit(ctx, in)
}

// Pending returns a copy of the user's staged transaction.
func (e *Engine) Pending(user api.UserID) (api.PendingTransaction, bool) {
	return e.store.Pending(user)
}

// Staged reports how many users have a transaction awaiting confirmation.
func (e *Engine) Staged() int {
	return e.store.Len()
}
