// Package api defines the core interfaces and data structures for botgastos.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the layout used for every timestamp written to the ledger.
const TimestampLayout = time.DateTime

// Sentinel errors shared across packages.
var (
	// ErrNoAmount is returned when a record without an amount is offered for staging.
	ErrNoAmount = errors.New("no amount detected")
	// ErrInvalidConfig wraps configuration and rule table validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserID identifies the human on the other side of the chat.
type UserID int64

// Channel is the modality through which the raw text entered the system.
type Channel string

// Supported input channels.
const (
	ChannelText  Channel = "text"
	ChannelAudio Channel = "audio"
	ChannelPhoto Channel = "photo"
)

// Label returns the name written to the ledger for the channel.
func (c Channel) Label() string {
	switch c {
	case ChannelAudio:
		return "Audio"
	case ChannelPhoto:
		return "Foto"
	default:
		return "Texto"
	}
}

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelText, ChannelAudio, ChannelPhoto:
		return true
	}
	return false
}

// RawInput is a piece of text produced by an input provider: the verbatim message,
// a finished voice transcript or OCR output.
type RawInput struct {
	Text    string
	Channel Channel
	User    UserID
	// UserName is the display name carried into the ledger rows.
	UserName  string
	Timestamp time.Time
}

// ExpenseRecord is the structured interpretation of a RawInput.
type ExpenseRecord struct {
	// ID is assigned when the record is built and lets sinks write idempotently.
	ID            string              `json:"id"`
	Timestamp     time.Time           `json:"timestamp"`
	UserName      string              `json:"user_name"`
	Channel       Channel             `json:"channel"`
	Amount        decimal.NullDecimal `json:"amount"`
	Category      string              `json:"category"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"payment_method"`
	Recurring     bool                `json:"recurring"`
	// Comment is the whole normalized utterance, kept as an audit trail.
	Comment string `json:"comment"`
}

// FormattedAmount renders the amount the way it is written to the summary row.
func (r ExpenseRecord) FormattedAmount() string {
	if !r.Amount.Valid {
		return ""
	}
	return "$" + r.Amount.Decimal.StringFixed(2)
}

// RecurringFlag renders the recurring heuristic as written to the summary row.
func (r ExpenseRecord) RecurringFlag() string {
	if r.Recurring {
		return "Sí"
	}
	return "No"
}

// Row returns the summary row:
// timestamp, user, channel, amount, category, currency, payment method, recurring, comment.
func (r ExpenseRecord) Row() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		r.UserName,
		r.Channel.Label(),
		r.FormattedAmount(),
		r.Category,
		r.Currency,
		r.PaymentMethod,
		r.RecurringFlag(),
		r.Comment,
	}
}

// LineItem is a single "product price" line found in the input.
type LineItem struct {
	// RecordID links the item to its summary record. It is not part of the row.
	RecordID  string          `json:"record_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UserName  string          `json:"user_name"`
	Product   string          `json:"product"`
	Price     decimal.Decimal `json:"price"`
}

// Row returns the detail row. The two blank columns are reserved by the ledger layout.
func (i LineItem) Row() []string {
	return []string{
		i.Timestamp.Format(TimestampLayout),
		i.UserName,
		i.Product,
		"",
		"",
		i.Price.String(),
	}
}

// PendingTransaction is a classified record waiting for the user's decision.
type PendingTransaction struct {
	Record   ExpenseRecord `json:"record"`
	Items    []LineItem    `json:"items"`
	StagedAt time.Time     `json:"staged_at"`
	// SummaryAppended records that the summary row reached the ledger on an earlier
	// confirm whose detail rows failed.
	SummaryAppended bool `json:"-"`
}

// Clone returns a copy that shares no slices with p.
func (p PendingTransaction) Clone() PendingTransaction {
	out := p
	if p.Items != nil {
		out.Items = make([]LineItem, len(p.Items))
		copy(out.Items, p.Items)
	}
	return out
}

// Ledger is the append-only sink that receives confirmed transactions.
type Ledger interface {
	// AppendSummary appends one summary row for a committed record.
	AppendSummary(ctx context.Context, record ExpenseRecord) error
	// AppendDetails appends the line items of a committed record as a single batch.
	AppendDetails(ctx context.Context, items []LineItem) error
}
